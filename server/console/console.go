package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/df-mc/scaffold/server/chat"
	"github.com/df-mc/scaffold/server/player"
)

// Executor executes command lines on behalf of a sender. *server.Server
// implements it.
type Executor interface {
	ExecuteCommand(sender player.Sender, commandLine string) bool
}

// Console provides a simple CLI backed command source that reads commands from
// an io.Reader (defaulting to os.Stdin) and executes them using an Executor.
// Messages sent to the console are written to an io.Writer (defaulting to
// os.Stdout) with formatting codes converted to ANSI escape sequences.
type Console struct {
	exec   Executor
	log    *slog.Logger
	reader io.Reader
	src    *source
}

// New returns a Console bound to the provided executor.
func New(exec Executor, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		exec:   exec,
		log:    log,
		reader: os.Stdin,
		src:    &source{w: os.Stdout},
	}
}

// WithReader sets a custom reader for the console input. It enables testing the
// console without relying on os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// WithWriter sets a custom writer that messages sent to the console are
// written to.
func (c *Console) WithWriter(w io.Writer) *Console {
	if w != nil {
		c.src.w = w
	}
	return c
}

// Sender returns the sender commands of the console are executed by. It holds
// every permission.
func (c *Console) Sender() player.Sender {
	return c.src
}

// Run starts consuming commands from the console. It blocks until the context
// is cancelled or the underlying reader reaches EOF.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("Console input error.", "error", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.exec.ExecuteCommand(c.src, line)
	}
}

type source struct {
	mu sync.Mutex
	w  io.Writer
}

func (*source) Name() string { return "Console" }

func (*source) HasPermission(string) bool { return true }

func (s *source) SendMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, chat.ANSI(message))
}
