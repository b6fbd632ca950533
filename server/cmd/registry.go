package cmd

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDuplicate is returned when registering a command whose name or alias is
// already taken.
var ErrDuplicate = errors.New("command already registered")

type aliased interface {
	Aliases() []string
}

type registration struct {
	node  Node
	owner string
}

// Registry holds the top level commands known to a server, indexed by name and
// alias. Every command is owned by the plugin that registered it, or by the
// server if the owner is empty.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]registration)}
}

// Register adds root under its name and aliases on behalf of owner. Nothing is
// registered if any of the names is already taken.
func (r *Registry) Register(owner string, root Node) error {
	if root == nil {
		return fmt.Errorf("register command: nil node")
	}
	names := aliasesOf(root)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, exists := r.commands[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, name)
		}
	}
	for _, name := range names {
		r.commands[name] = registration{node: root, owner: owner}
	}
	return nil
}

// Unregister removes the command registered under name, including all of its
// aliases. It reports if a command was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.commands[fold(name)]
	if !ok {
		return false
	}
	r.removeLocked(reg.node)
	return true
}

// UnregisterOwner removes every command owned by owner and returns their names.
func (r *Registry) UnregisterOwner(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, reg := range r.commands {
		if reg.owner != owner {
			continue
		}
		if !slices.Contains(removed, reg.node.Name()) {
			removed = append(removed, reg.node.Name())
		}
		r.removeLocked(reg.node)
	}
	slices.Sort(removed)
	return removed
}

// RenameOwner transfers every command owned by oldOwner to newOwner.
func (r *Registry) RenameOwner(oldOwner, newOwner string) {
	if oldOwner == newOwner {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, reg := range r.commands {
		if reg.owner == oldOwner {
			reg.owner = newOwner
			r.commands[name] = reg
		}
	}
}

// ByAlias looks up a command by its name or one of its aliases, ignoring case.
func (r *Registry) ByAlias(alias string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.commands[fold(alias)]
	return reg.node, ok
}

// Owner returns the owner of the command registered under alias.
func (r *Registry) Owner(alias string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.commands[fold(alias)]
	return reg.owner, ok
}

// Commands returns all registered commands indexed by alias.
func (r *Registry) Commands() map[string]Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]Node, len(r.commands))
	for alias, reg := range r.commands {
		m[alias] = reg.node
	}
	return m
}

// Names returns the sorted names of all registered commands, without aliases.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for alias, reg := range r.commands {
		if fold(reg.node.Name()) == alias {
			names = append(names, reg.node.Name())
		}
	}
	slices.Sort(names)
	return names
}

func (r *Registry) removeLocked(node Node) {
	for name, reg := range r.commands {
		if reg.node == node {
			delete(r.commands, name)
		}
	}
}

func aliasesOf(root Node) []string {
	names := []string{fold(root.Name())}
	if a, ok := root.(aliased); ok {
		for _, alias := range a.Aliases() {
			if f := fold(alias); !slices.Contains(names, f) {
				names = append(names, f)
			}
		}
	}
	return names
}
