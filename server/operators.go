package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml"
	"golang.org/x/text/cases"
)

var (
	// ErrOperatorsUnavailable is returned when the server has no operator list.
	ErrOperatorsUnavailable = errors.New("operator list is not configured")
	// ErrOperatorInvalidName is returned when an operator name is blank.
	ErrOperatorInvalidName = errors.New("invalid player name")
)

// Operators is the list of players holding every permission on the server.
// Names are matched case-insensitively and the list is stored in a TOML file.
// The zero value of *Operators (nil) is an empty list that cannot be changed.
type Operators struct {
	path string

	mu sync.RWMutex
	// ops is sorted by the folded form of each name.
	ops []operator
}

type operator struct {
	key, name string
}

type operatorFile struct {
	Operators []string `toml:"operators" comment:"Players holding every permission. Names are case-insensitive."`
}

// LoadOperators reads the operator list from the TOML file at path, creating
// an empty file if there is none yet.
func LoadOperators(path string) (*Operators, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("operators path must not be empty")
	}
	o := &Operators{path: path}
	if err := o.Reload(); err != nil {
		return nil, err
	}
	return o, nil
}

// Contains reports if name is an operator.
func (o *Operators) Contains(name string) bool {
	if o == nil {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, found := o.search(foldName(name))
	return found
}

// Add makes name an operator. It reports if name was not an operator before.
func (o *Operators) Add(name string) (bool, error) {
	return o.set(name, true)
}

// Remove takes the operator status of name away. It reports if name was an
// operator before.
func (o *Operators) Remove(name string) (bool, error) {
	return o.set(name, false)
}

// Players returns the names of all operators, ordered case-insensitively.
func (o *Operators) Players() []string {
	if o == nil {
		return nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.names()
}

// Reload replaces the operators held in memory with the contents of the file.
func (o *Operators) Reload() error {
	contents, err := os.ReadFile(o.path)
	if errors.Is(err, fs.ErrNotExist) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.ops = nil
		return o.persist()
	}
	if err != nil {
		return fmt.Errorf("read operators: %w", err)
	}
	var file operatorFile
	if err := toml.Unmarshal(contents, &file); err != nil {
		return fmt.Errorf("decode operators: %w", err)
	}

	ops := make([]operator, 0, len(file.Operators))
	for _, name := range file.Operators {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := foldName(name)
		i, found := slices.BinarySearchFunc(ops, key, compareOperator)
		if !found {
			ops = slices.Insert(ops, i, operator{key: key, name: name})
		}
	}
	o.mu.Lock()
	o.ops = ops
	o.mu.Unlock()
	return nil
}

func (o *Operators) set(name string, op bool) (bool, error) {
	if o == nil {
		return false, ErrOperatorsUnavailable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, ErrOperatorInvalidName
	}
	key := foldName(name)

	o.mu.Lock()
	defer o.mu.Unlock()
	i, found := o.search(key)
	if found == op {
		return false, nil
	}
	previous := o.ops
	if op {
		o.ops = slices.Insert(slices.Clone(o.ops), i, operator{key: key, name: name})
	} else {
		o.ops = slices.Delete(slices.Clone(o.ops), i, i+1)
	}
	if err := o.persist(); err != nil {
		o.ops = previous
		return false, err
	}
	return true, nil
}

func (o *Operators) search(key string) (int, bool) {
	return slices.BinarySearchFunc(o.ops, key, compareOperator)
}

func (o *Operators) names() []string {
	names := make([]string, len(o.ops))
	for i, op := range o.ops {
		names[i] = op.name
	}
	return names
}

// persist writes the list to a temporary file next to the operator file and
// renames it into place.
func (o *Operators) persist() error {
	encoded, err := toml.Marshal(operatorFile{Operators: o.names()})
	if err != nil {
		return fmt.Errorf("encode operators: %w", err)
	}
	dir := filepath.Dir(o.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create operators directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(o.path)+".*")
	if err != nil {
		return fmt.Errorf("write operators: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write operators: %w", err)
	}
	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write operators: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write operators: %w", err)
	}
	if err := os.Rename(tmp.Name(), o.path); err != nil {
		return fmt.Errorf("write operators: %w", err)
	}
	return nil
}

func compareOperator(op operator, key string) int {
	return strings.Compare(op.key, key)
}

// foldName returns the form of a player name operators are compared by.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
