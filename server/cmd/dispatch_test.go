package cmd

import (
	"slices"
	"testing"

	"github.com/df-mc/scaffold/server/chat"
	"github.com/df-mc/scaffold/server/player"
)

type testSender struct {
	perms    map[string]bool
	messages []string
}

func (s *testSender) Name() string                { return "steve" }
func (s *testSender) HasPermission(p string) bool { return s.perms[p] }
func (s *testSender) SendMessage(message string)  { s.messages = append(s.messages, message) }

func newActor(perms ...string) (*player.Actor, *testSender) {
	s := &testSender{perms: make(map[string]bool)}
	for _, p := range perms {
		s.perms[p] = true
	}
	return player.New(s), s
}

// call records an invocation of a command in a test tree.
type call struct {
	node string
	args []string
}

type townTree struct {
	root   *Func
	invite *Func
	info   *Func
	calls  []call
}

func newTownTree() *townTree {
	tree := &townTree{}
	record := func(name string) RunFunc {
		return func(_ *player.Actor, args []string) {
			tree.calls = append(tree.calls, call{node: name, args: slices.Clone(args)})
		}
	}
	tree.root = New("town", record("town"), WithPermission("town.use"))
	tree.invite = New("invite", record("invite"), WithPermission("town.invite"), WithTabArguments("<player>"), AsSubcommand())
	tree.info = New("info", record("info"), WithPermission("town.info"), AsSubcommand())
	tree.root.AddSubcommand("invite", tree.invite)
	tree.root.AddSubcommand("info", tree.info)
	return tree
}

func TestDispatchRootPermissionDenied(t *testing.T) {
	chat.SetPrefix("")
	tree := newTownTree()
	a, s := newActor()

	for _, args := range [][]string{nil, {"invite", "steve"}, {"kick"}} {
		s.messages = nil
		Dispatch(tree.root, a, args)
		if len(s.messages) != 1 {
			t.Fatalf("args %v: expected exactly one message, got %v", args, s.messages)
		}
		if s.messages[0] != chat.Format(MessagePermissionDenied) {
			t.Fatalf("args %v: unexpected message %q", args, s.messages[0])
		}
	}
	if len(tree.calls) != 0 {
		t.Fatalf("no handler should run without the root permission, got %v", tree.calls)
	}
}

func TestDispatchSubcommandPermissionDenied(t *testing.T) {
	tree := newTownTree()
	a, s := newActor("town.use")

	Dispatch(tree.root, a, []string{"invite", "steve"})
	if len(s.messages) != 1 || s.messages[0] != chat.Format(MessagePermissionDenied) {
		t.Fatalf("expected a single permission denied message, got %v", s.messages)
	}
	if len(tree.calls) != 0 {
		t.Fatalf("invite handler must not run, got %v", tree.calls)
	}
}

func TestDispatchIntoSubcommand(t *testing.T) {
	tree := newTownTree()
	a, s := newActor("town.use", "town.invite")

	Dispatch(tree.root, a, []string{"invite", "steve"})
	if len(s.messages) != 0 {
		t.Fatalf("unexpected messages %v", s.messages)
	}
	want := []call{{node: "invite", args: []string{"steve"}}}
	if !slices.EqualFunc(tree.calls, want, callEqual) {
		t.Fatalf("calls = %v, want %v", tree.calls, want)
	}
}

func TestDispatchSubcommandIgnoresCase(t *testing.T) {
	tree := newTownTree()
	a, _ := newActor("town.use", "town.invite")

	Dispatch(tree.root, a, []string{"INVITE", "Steve"})
	want := []call{{node: "invite", args: []string{"Steve"}}}
	if !slices.EqualFunc(tree.calls, want, callEqual) {
		t.Fatalf("calls = %v, want %v", tree.calls, want)
	}
}

func TestDispatchUnknownArgumentRunsRoot(t *testing.T) {
	tree := newTownTree()
	a, _ := newActor("town.use")

	Dispatch(tree.root, a, []string{"kick"})
	want := []call{{node: "town", args: []string{"kick"}}}
	if !slices.EqualFunc(tree.calls, want, callEqual) {
		t.Fatalf("calls = %v, want %v", tree.calls, want)
	}
}

func TestDispatchNonSubcommandChildRunsRoot(t *testing.T) {
	tree := newTownTree()
	tree.root.AddSubcommand("name", New("name", func(*player.Actor, []string) {
		t.Fatalf("positional child must not be dispatched to")
	}))
	a, _ := newActor("town.use")

	Dispatch(tree.root, a, []string{"name", "x"})
	want := []call{{node: "town", args: []string{"name", "x"}}}
	if !slices.EqualFunc(tree.calls, want, callEqual) {
		t.Fatalf("calls = %v, want %v", tree.calls, want)
	}
}

func TestDispatchNestedSubcommands(t *testing.T) {
	tree := newTownTree()
	var got []string
	deny := New("deny", func(_ *player.Actor, args []string) { got = args }, WithPermission("town.invite.deny"), AsSubcommand())
	tree.invite.AddSubcommand("deny", deny)

	a, s := newActor("town.use", "town.invite")
	Dispatch(tree.root, a, []string{"invite", "deny", "alex"})
	if got != nil || len(s.messages) != 1 {
		t.Fatalf("expected denial at the nested node, got args %v messages %v", got, s.messages)
	}

	a, _ = newActor("town.use", "town.invite", "town.invite.deny")
	Dispatch(tree.root, a, []string{"invite", "deny", "alex"})
	if !slices.Equal(got, []string{"alex"}) {
		t.Fatalf("nested subcommand received %v, want [alex]", got)
	}
}

func TestDispatchEmptyPermission(t *testing.T) {
	ran := false
	root := New("spawn", func(*player.Actor, []string) { ran = true })
	a, s := newActor()
	Dispatch(root, a, nil)
	if !ran || len(s.messages) != 0 {
		t.Fatalf("command without permission should run for everyone")
	}
}

func TestFuncWithoutRunSendsUsage(t *testing.T) {
	root := New("town", nil, WithUsage("&e/town <invite|info>"))
	a, s := newActor()
	Dispatch(root, a, nil)
	if len(s.messages) != 1 || s.messages[0] != chat.Format("&e/town <invite|info>") {
		t.Fatalf("expected usage message, got %v", s.messages)
	}
	if New("x", nil).Usage() != MessageUsage {
		t.Fatalf("default usage should be %q", MessageUsage)
	}
}

func TestComplete(t *testing.T) {
	tree := newTownTree()
	cases := []struct {
		args []string
		want []string
	}{
		{args: nil, want: []string{"invite", "info"}},
		{args: []string{""}, want: []string{"invite", "info"}},
		{args: []string{"in"}, want: []string{"invite", "info"}},
		{args: []string{"inv"}, want: []string{"invite"}},
		{args: []string{"INF"}, want: []string{"info"}},
		{args: []string{"x"}, want: []string{}},
		{args: []string{"invite", ""}, want: []string{"<player>"}},
		{args: []string{"Invite", "<p"}, want: []string{"<player>"}},
		{args: []string{"invite", "z"}, want: []string{}},
		{args: []string{"kick", "in"}, want: []string{"invite", "info"}},
		{args: []string{`\s`, "invite", ""}, want: []string{"invite", "info"}},
	}
	for _, c := range cases {
		if got := Complete(tree.root, c.args); !slices.Equal(got, c.want) {
			t.Fatalf("Complete(%q) = %q, want %q", c.args, got, c.want)
		}
	}
}

func TestCompleteStopsAtDeepestNode(t *testing.T) {
	tree := newTownTree()
	tree.invite.AddSubcommand("deny", New("deny", nil, WithTabArguments("all", "alex"), AsSubcommand()))

	if got := Complete(tree.root, []string{"invite", "deny", "a"}); !slices.Equal(got, []string{"all", "alex"}) {
		t.Fatalf("completion at nested node returned %q", got)
	}
	if got := Complete(tree.root, []string{"invite", "nope", ""}); !slices.Equal(got, []string{"<player>", "deny"}) {
		t.Fatalf("completion after unmatched token returned %q", got)
	}
}

func TestAddSubcommandReplacesChild(t *testing.T) {
	tree := newTownTree()
	replacement := New("INFO", func(_ *player.Actor, args []string) {
		tree.calls = append(tree.calls, call{node: "replacement", args: slices.Clone(args)})
	}, AsSubcommand())
	tree.root.AddSubcommand("INFO", replacement)

	if got := tree.root.TabArguments(); !slices.Equal(got, []string{"invite", "info"}) {
		t.Fatalf("tab arguments after replacing a child = %q", got)
	}
	if got := Complete(tree.root, []string{"in"}); !slices.Equal(got, []string{"invite", "info"}) {
		t.Fatalf("Complete(in) after replacing a child = %q", got)
	}
	a, _ := newActor("town.use")
	Dispatch(tree.root, a, []string{"info", "Riverside"})
	if len(tree.calls) != 1 || !callEqual(tree.calls[0], call{node: "replacement", args: []string{"Riverside"}}) {
		t.Fatalf("calls = %+v, want the replacing child to run", tree.calls)
	}
}

func callEqual(a, b call) bool {
	return a.node == b.node && slices.Equal(a.args, b.args)
}
