package player

import (
	"github.com/df-mc/scaffold/server/chat"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Sender is an entity supplied by the host that may invoke commands. The
// scaffold never inspects a Sender beyond these methods.
type Sender interface {
	// Name returns the display name of the sender.
	Name() string
	// HasPermission reports if the sender holds the permission passed.
	HasPermission(permission string) bool
	// SendMessage delivers a message that already had its formatting codes
	// translated.
	SendMessage(message string)
}

// Operator is implemented by senders that carry an operator flag.
type Operator interface {
	IsOp() bool
	SetOp(op bool)
}

// Identified is implemented by senders that are backed by a player with a
// stable UUID.
type Identified interface {
	UUID() uuid.UUID
}

// Positioned is implemented by senders that exist somewhere in a world.
type Positioned interface {
	Position() mgl64.Vec3
}

// Wrapper is implemented by senders that decorate another Sender. The
// optional capabilities of an Actor are looked up through wrappers.
type Wrapper interface {
	Unwrap() Sender
}

// Actor wraps a Sender and adds the formatting conventions used by plugins:
// ampersand colour codes and the process-wide message prefix.
type Actor struct {
	sender Sender
}

// New wraps s in an Actor.
func New(s Sender) *Actor {
	if s == nil {
		panic("player.New: sender must not be nil")
	}
	return &Actor{sender: s}
}

// Sender returns the underlying Sender.
func (a *Actor) Sender() Sender {
	return a.sender
}

// Name returns the name of the sender.
func (a *Actor) Name() string {
	return a.sender.Name()
}

// HasPermission reports if the sender holds the permission passed.
func (a *Actor) HasPermission(permission string) bool {
	return a.sender.HasPermission(permission)
}

// SendMessage translates the ampersand formatting codes in message and sends
// it to the sender.
func (a *Actor) SendMessage(message string) {
	a.sender.SendMessage(chat.Translate(message))
}

// SendFormattedMessage sends message with the process-wide prefix in front of
// it. See chat.SetPrefix.
func (a *Actor) SendFormattedMessage(message string) {
	a.sender.SendMessage(chat.Format(message))
}

// IsOp reports if the sender is an operator. Senders that do not implement
// Operator are never operators.
func (a *Actor) IsOp() bool {
	if op, ok := capability[Operator](a.sender); ok {
		return op.IsOp()
	}
	return false
}

// SetOp updates the operator flag of the sender. It is a no-op for senders
// that do not implement Operator.
func (a *Actor) SetOp(op bool) {
	if o, ok := capability[Operator](a.sender); ok {
		o.SetOp(op)
	}
}

// UUID returns the UUID of the sender if it is backed by a player.
func (a *Actor) UUID() (uuid.UUID, bool) {
	if id, ok := capability[Identified](a.sender); ok {
		return id.UUID(), true
	}
	return uuid.Nil, false
}

// Position returns the position of the sender if it has one.
func (a *Actor) Position() (mgl64.Vec3, bool) {
	if p, ok := capability[Positioned](a.sender); ok {
		return p.Position(), true
	}
	return mgl64.Vec3{}, false
}

// capability returns the first sender in the chain of wrappers starting at s
// that implements T.
func capability[T any](s Sender) (T, bool) {
	for s != nil {
		if c, ok := s.(T); ok {
			return c, true
		}
		w, ok := s.(Wrapper)
		if !ok {
			break
		}
		s = w.Unwrap()
	}
	var zero T
	return zero, false
}
