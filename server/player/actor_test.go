package player

import (
	"testing"

	"github.com/df-mc/scaffold/server/chat"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

type testSender struct {
	name     string
	perms    map[string]bool
	messages []string
}

func (s *testSender) Name() string                { return s.name }
func (s *testSender) HasPermission(p string) bool { return s.perms[p] }
func (s *testSender) SendMessage(message string)  { s.messages = append(s.messages, message) }

type testPlayer struct {
	testSender
	id  uuid.UUID
	pos mgl64.Vec3
	op  bool
}

func (p *testPlayer) UUID() uuid.UUID      { return p.id }
func (p *testPlayer) Position() mgl64.Vec3 { return p.pos }
func (p *testPlayer) IsOp() bool           { return p.op }
func (p *testPlayer) SetOp(op bool)        { p.op = op }

func TestActorMessages(t *testing.T) {
	chat.SetPrefix("&7[Test]")
	defer chat.SetPrefix("")

	s := &testSender{name: "steve"}
	a := New(s)
	a.SendMessage("&ahello")
	a.SendFormattedMessage("&cno")

	if len(s.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.messages))
	}
	if s.messages[0] != "§ahello" {
		t.Fatalf("SendMessage delivered %q", s.messages[0])
	}
	if s.messages[1] != "§7[Test] §cno" {
		t.Fatalf("SendFormattedMessage delivered %q", s.messages[1])
	}
}

func TestActorOptionalCapabilities(t *testing.T) {
	plain := New(&testSender{name: "Console"})
	if _, ok := plain.UUID(); ok {
		t.Fatalf("plain sender should not have a UUID")
	}
	if _, ok := plain.Position(); ok {
		t.Fatalf("plain sender should not have a position")
	}
	if plain.IsOp() {
		t.Fatalf("plain sender should never be an operator")
	}
	plain.SetOp(true)
	if plain.IsOp() {
		t.Fatalf("SetOp on plain sender should be a no-op")
	}

	p := &testPlayer{testSender: testSender{name: "alex"}, id: uuid.New(), pos: mgl64.Vec3{1, 64, -3}}
	a := New(p)
	if id, ok := a.UUID(); !ok || id != p.id {
		t.Fatalf("UUID() = %v, %v; want %v, true", id, ok, p.id)
	}
	if pos, ok := a.Position(); !ok || pos != p.pos {
		t.Fatalf("Position() = %v, %v; want %v, true", pos, ok, p.pos)
	}
	a.SetOp(true)
	if !a.IsOp() || !p.op {
		t.Fatalf("SetOp(true) did not reach the sender")
	}
	if a.Name() != "alex" {
		t.Fatalf("Name() = %q", a.Name())
	}
}

type wrappingSender struct {
	Sender
}

func (w wrappingSender) Unwrap() Sender { return w.Sender }

func TestActorCapabilitiesThroughWrapper(t *testing.T) {
	p := &testPlayer{testSender: testSender{name: "alex"}, id: uuid.New()}
	a := New(wrappingSender{Sender: p})
	if id, ok := a.UUID(); !ok || id != p.id {
		t.Fatalf("UUID() through wrapper = %v, %v; want %v, true", id, ok, p.id)
	}
	a.SetOp(true)
	if !p.op {
		t.Fatalf("SetOp(true) through wrapper did not reach the sender")
	}
}
