package event

import (
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
)

// Registration is a listener registered with a Hub by an owner, usually a
// plugin, under a name unique to that owner.
type Registration struct {
	Owner    string
	Name     string
	Listener any
	id       uint64
}

// Hub is a registry of named listeners. Listeners may implement any number of
// handler interfaces, and events are delivered using Emit to every listener
// that implements the interface of the event.
type Hub struct {
	mu    sync.Mutex
	regs  []Registration
	next  uint64
	chain atomic.Value // []Registration

	log     *slog.Logger
	onPanic func(owner string, reason any)
}

// NewHub returns an empty Hub that logs using log.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{log: log.With("subsystem", "events")}
	h.chain.Store([]Registration{})
	return h
}

// OnPanic sets a function called when a listener panics while handling an
// event. The panic is recovered either way.
func (h *Hub) OnPanic(fn func(owner string, reason any)) {
	h.mu.Lock()
	h.onPanic = fn
	h.mu.Unlock()
}

// Subscribe registers l under name for owner, replacing any listener the owner
// registered under the same name before. The returned function removes the
// listener when called.
func (h *Hub) Subscribe(owner, name string, l any) func() {
	if l == nil {
		return func() {}
	}
	h.mu.Lock()
	h.removeLocked(func(r Registration) bool { return r.Owner == owner && r.Name == name })
	id := h.next
	h.next++
	h.regs = append(h.regs, Registration{Owner: owner, Name: name, Listener: l, id: id})
	h.publishLocked()
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.removeLocked(func(r Registration) bool { return r.id == id })
			h.publishLocked()
			h.mu.Unlock()
		})
	}
}

// Listener returns the listener registered by owner under name.
func (h *Hub) Listener(owner, name string) (any, bool) {
	for _, r := range h.snapshot() {
		if r.Owner == owner && r.Name == name {
			return r.Listener, true
		}
	}
	return nil, false
}

// Remove removes the listener registered by owner under name and reports if
// one was present.
func (h *Hub) Remove(owner, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.removeLocked(func(r Registration) bool { return r.Owner == owner && r.Name == name })
	h.publishLocked()
	return n > 0
}

// Registrations returns the listeners registered by owner in registration
// order.
func (h *Hub) Registrations(owner string) []Registration {
	var out []Registration
	for _, r := range h.snapshot() {
		if r.Owner == owner {
			out = append(out, r)
		}
	}
	return out
}

// Clear removes every listener registered by owner.
func (h *Hub) Clear(owner string) {
	h.mu.Lock()
	h.removeLocked(func(r Registration) bool { return r.Owner == owner })
	h.publishLocked()
	h.mu.Unlock()
}

// Rename moves every listener registered by oldOwner to newOwner.
func (h *Hub) Rename(oldOwner, newOwner string) {
	if oldOwner == newOwner {
		return
	}
	h.mu.Lock()
	for i := range h.regs {
		if h.regs[i].Owner == oldOwner {
			h.regs[i].Owner = newOwner
		}
	}
	h.publishLocked()
	h.mu.Unlock()
}

// Emit calls fn for every listener in h that implements T, in registration
// order. A listener that panics is skipped and reported to the function set
// using Hub.OnPanic.
func Emit[T any](h *Hub, fn func(T)) {
	if h == nil || fn == nil {
		return
	}
	for _, r := range h.snapshot() {
		l, ok := r.Listener.(T)
		if !ok {
			continue
		}
		h.call(r.Owner, func() { fn(l) })
	}
}

func (h *Hub) call(owner string, fn func()) {
	defer func() {
		if reason := recover(); reason != nil {
			h.log.Error("Listener panic.", "owner", owner, "panic", reason, "stack", string(debug.Stack()))
			h.mu.Lock()
			onPanic := h.onPanic
			h.mu.Unlock()
			if onPanic != nil {
				onPanic(owner, reason)
			}
		}
	}()
	fn()
}

func (h *Hub) snapshot() []Registration {
	regs, _ := h.chain.Load().([]Registration)
	return regs
}

func (h *Hub) publishLocked() {
	h.chain.Store(slices.Clone(h.regs))
}

func (h *Hub) removeLocked(match func(Registration) bool) int {
	before := len(h.regs)
	h.regs = slices.DeleteFunc(h.regs, match)
	return before - len(h.regs)
}
