package match

import (
	"testing"

	"github.com/chazu/moot/value"
)

func TestPatternBasics(t *testing.T) {
	cases := []struct {
		pat, sub string
		want     bool
	}{
		{"foo", "foo", true},
		{"foo", "afoob", true},
		{"foo", "bar", false},
		{"f?o", "fro", true},
		{"f?o", "fo", false},
		{"f*o", "fabco", true},
		{"f*o", "fo", true},
		{"[abc]at", "bat", true},
		{"[abc]at", "dat", false},
		{"[^abc]at", "dat", true},
		{"[a-f]x", "cx", true},
		{"[a-f]x", "gx", false},
		{"\\*", "a*b", true},
		{"\\*", "ab", false},
	}
	for _, c := range cases {
		_, ok, err := Match(c.pat, c.sub, Options{})
		if err != nil {
			t.Fatalf("Match(%q, %q): %v", c.pat, c.sub, err)
		}
		if ok != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pat, c.sub, ok, c.want)
		}
	}
}

func TestPatternCase(t *testing.T) {
	if _, ok, _ := Match("FOO", "foo", Options{}); !ok {
		t.Error("default match should be case-insensitive")
	}
	if _, ok, _ := Match("FOO", "foo", Options{CaseMatters: true}); ok {
		t.Error("case-sensitive match should fail")
	}
}

func TestPatternCaptures(t *testing.T) {
	res, ok, err := Match("a*c", "xxabcyy", Options{})
	if err != nil || !ok {
		t.Fatalf("match failed: ok=%v err=%v", ok, err)
	}
	if res.Start != 3 || res.End != 5 {
		t.Errorf("span = (%d,%d), want (3,5)", res.Start, res.End)
	}
	if len(res.Captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(res.Captures))
	}
	if res.Captures[0].Start != 4 || res.Captures[0].End != 4 {
		t.Errorf("capture = (%d,%d), want (4,4)", res.Captures[0].Start, res.Captures[0].End)
	}
}

func TestPatternReverse(t *testing.T) {
	fwd, ok, _ := Match("o", "foo", Options{})
	if !ok || fwd.Start != 2 {
		t.Fatalf("forward start = %d, want 2", fwd.Start)
	}
	rev, ok, _ := Match("o", "foo", Options{Reverse: true})
	if !ok || rev.Start != 3 {
		t.Fatalf("reverse start = %d, want 3", rev.Start)
	}
}

func TestPrepIndex(t *testing.T) {
	if PrepIndex("with") != 0 || PrepIndex("using") != 0 {
		t.Error("with/using should share entry 0")
	}
	if PrepIndex("in front of") < 0 {
		t.Error("multi-word preposition not found")
	}
	if PrepIndex("xyzzy") != -1 {
		t.Error("non-preposition should be -1")
	}
	if got := PrepName(PrepIndex("onto")); got != "on top of" {
		t.Errorf("PrepName(onto-entry) = %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	cmd := ParseCommand("put ball in box")
	if cmd.Verb != "put" || cmd.Dobjstr != "ball" || cmd.Prepstr != "in" || cmd.Iobjstr != "box" {
		t.Errorf("parse = %+v", cmd)
	}
	if cmd.Argstr != "ball in box" {
		t.Errorf("argstr = %q", cmd.Argstr)
	}

	cmd = ParseCommand("look")
	if cmd.Verb != "look" || cmd.Dobjstr != "" || cmd.Prep != -1 {
		t.Errorf("bare verb parse = %+v", cmd)
	}

	cmd = ParseCommand("drop lantern")
	if cmd.Dobjstr != "lantern" || cmd.Prep != -1 || cmd.Iobjstr != "" {
		t.Errorf("no-prep parse = %+v", cmd)
	}
}

func TestParseCommandMultiwordPrep(t *testing.T) {
	cmd := ParseCommand("put note in front of door")
	if cmd.Prepstr != "in front of" || cmd.Dobjstr != "note" || cmd.Iobjstr != "door" {
		t.Errorf("parse = %+v", cmd)
	}
}

func TestParseCommandQuotes(t *testing.T) {
	cmd := ParseCommand(`rename box to "shiny box"`)
	if len(cmd.Args) != 4 || cmd.Args[3] != "shiny box" {
		t.Errorf("args = %q", cmd.Args)
	}
	if cmd.Iobjstr != "shiny box" {
		t.Errorf("iobjstr = %q", cmd.Iobjstr)
	}
}

func TestParseCommandShorthand(t *testing.T) {
	if cmd := ParseCommand(`"hello there`); cmd.Verb != "say" || cmd.Argstr != "hello there" {
		t.Errorf("say parse = %+v", cmd)
	}
	if cmd := ParseCommand(":grins"); cmd.Verb != "emote" || cmd.Argstr != "grins" {
		t.Errorf("emote parse = %+v", cmd)
	}
}

type fakeEnv struct {
	names map[value.Objid][]string
	loc   value.Objid
	here  []value.Objid
}

func (e *fakeEnv) Valid(o value.Objid) bool           { _, ok := e.names[o]; return ok }
func (e *fakeEnv) Names(o value.Objid) []string       { return e.names[o] }
func (e *fakeEnv) Location(value.Objid) value.Objid   { return e.loc }
func (e *fakeEnv) Surroundings(value.Objid) []value.Objid { return e.here }

func TestMatchObject(t *testing.T) {
	env := &fakeEnv{
		names: map[value.Objid][]string{
			10: {"lantern", "lamp"},
			11: {"large box"},
			12: {"large sack"},
		},
		loc:  5,
		here: []value.Objid{10, 11, 12},
	}

	if got := MatchObject(env, 2, "me"); got != 2 {
		t.Errorf("me = %v", got)
	}
	if got := MatchObject(env, 2, "here"); got != 5 {
		t.Errorf("here = %v", got)
	}
	if got := MatchObject(env, 2, "#11"); got != 11 {
		t.Errorf("#11 = %v", got)
	}
	if got := MatchObject(env, 2, "#99"); got != value.Failed {
		t.Errorf("#99 = %v", got)
	}
	if got := MatchObject(env, 2, ""); got != value.Nothing {
		t.Errorf("empty = %v", got)
	}
	if got := MatchObject(env, 2, "LAMP"); got != 10 {
		t.Errorf("alias exact = %v", got)
	}
	if got := MatchObject(env, 2, "lan"); got != 10 {
		t.Errorf("prefix = %v", got)
	}
	if got := MatchObject(env, 2, "large"); got != value.Ambiguous {
		t.Errorf("ambiguous prefix = %v", got)
	}
	if got := MatchObject(env, 2, "large box"); got != 11 {
		t.Errorf("exact beats ambiguous prefix = %v", got)
	}
	if got := MatchObject(env, 2, "sword"); got != value.Failed {
		t.Errorf("missing = %v", got)
	}
}
