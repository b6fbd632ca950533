package cmd

import (
	"github.com/df-mc/scaffold/server/player"
	"golang.org/x/text/cases"
)

const (
	// MessagePermissionDenied is sent to an actor that lacks the permission of
	// a command or one of its subcommands.
	MessagePermissionDenied = "&cInsufficient permission!"
	// MessageUsage is the usage text of commands that do not specify one.
	MessageUsage = "&cIncorrect command usage."
	// MessageUnknown is sent when a command line names no registered command.
	MessageUnknown = "&cUnknown command: %s"
)

// Node is a single command or subcommand in a command tree. Every node may
// carry subcommands of its own, forming a tree rooted at a top level command.
type Node interface {
	// Name returns the token that selects the node from its parent.
	Name() string
	// Permission returns the permission required to run the node or to
	// descend past it. An empty permission is held by everyone.
	Permission() string
	// Usage returns the usage text shown when the node is misused.
	Usage() string
	// TabArguments returns the static completion candidates for the
	// argument position directly after the node.
	TabArguments() []string
	// Subcommand reports if the node takes part in chained dispatch. Children
	// that are not subcommands are only used for tab completion.
	Subcommand() bool
	// Subcommands returns the children of the node keyed by their folded
	// name.
	Subcommands() map[string]Node
	// Execute runs the node with the arguments left after subcommand
	// resolution.
	Execute(a *player.Actor, args []string)
}

// Option configures a Base.
type Option func(b *Base)

// WithPermission sets the permission required to run the command.
func WithPermission(permission string) Option {
	return func(b *Base) { b.permission = permission }
}

// WithUsage sets the usage text of the command.
func WithUsage(usage string) Option {
	return func(b *Base) { b.usage = usage }
}

// WithDescription sets the description shown by help listings.
func WithDescription(description string) Option {
	return func(b *Base) { b.description = description }
}

// WithAliases sets alternative names the command is registered under. Aliases
// only apply to top level commands.
func WithAliases(aliases ...string) Option {
	return func(b *Base) { b.aliases = append(b.aliases, aliases...) }
}

// WithTabArguments adds static completion candidates.
func WithTabArguments(args ...string) Option {
	return func(b *Base) { b.tabArgs = append(b.tabArgs, args...) }
}

// AsSubcommand flags the command as a subcommand so that its parent hands
// control to it during dispatch.
func AsSubcommand() Option {
	return func(b *Base) { b.subcommand = true }
}

// Base implements every method of Node except Execute. Concrete commands embed
// a *Base and add an Execute method.
type Base struct {
	name        string
	permission  string
	usage       string
	description string
	aliases     []string
	subcommand  bool
	tabArgs     []string
	children    map[string]Node
}

// NewBase returns a Base named name configured with opts.
func NewBase(name string, opts ...Option) *Base {
	b := &Base{name: name, children: make(map[string]Node)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name ...
func (b *Base) Name() string { return b.name }

// Permission ...
func (b *Base) Permission() string { return b.permission }

// Usage returns the usage text of the command, or MessageUsage if none was
// set.
func (b *Base) Usage() string {
	if b.usage == "" {
		return MessageUsage
	}
	return b.usage
}

// Description ...
func (b *Base) Description() string { return b.description }

// Aliases ...
func (b *Base) Aliases() []string { return b.aliases }

// Subcommand ...
func (b *Base) Subcommand() bool { return b.subcommand }

// TabArguments ...
func (b *Base) TabArguments() []string { return b.tabArgs }

// Subcommands ...
func (b *Base) Subcommands() map[string]Node { return b.children }

// AddTabArguments adds static completion candidates to the command.
func (b *Base) AddTabArguments(args ...string) {
	b.tabArgs = append(b.tabArgs, args...)
}

// AddSubcommand adds n as a child of the command under name and makes name
// available as a completion candidate. A child already added under name is
// replaced. Children must be added before the command is registered.
func (b *Base) AddSubcommand(name string, n Node) {
	if n == nil {
		panic("cmd.AddSubcommand: node must not be nil")
	}
	key := fold(name)
	if _, replaced := b.children[key]; !replaced {
		b.tabArgs = append(b.tabArgs, name)
	}
	b.children[key] = n
}

// SendUsage sends the usage text of the command to a.
func (b *Base) SendUsage(a *player.Actor) {
	a.SendFormattedMessage(b.Usage())
}

// RunFunc is the signature of a function run by a Func.
type RunFunc func(a *player.Actor, args []string)

// Func is a Node backed by a function.
type Func struct {
	*Base
	run RunFunc
}

// New returns a Func command named name that runs run when executed. If run
// is nil, executing the command sends its usage text.
func New(name string, run RunFunc, opts ...Option) *Func {
	return &Func{Base: NewBase(name, opts...), run: run}
}

// Execute runs the function of f, or sends the usage text if f has none.
func (f *Func) Execute(a *player.Actor, args []string) {
	if f.run == nil {
		f.SendUsage(a)
		return
	}
	f.run(a, args)
}

// fold returns the case folded form of a command token. A new Caser is used
// for every call since Casers are not safe for concurrent use.
func fold(token string) string {
	return cases.Fold().String(token)
}

var _ Node = (*Func)(nil)
