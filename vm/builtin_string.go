package vm

import (
	"strings"

	"github.com/chazu/moot/match"
	"github.com/chazu/moot/value"
)

// ---- string built-ins --------------------------------------------------

func init() {
	RegisterBuiltin("strcmp", bfStrcmp)
	RegisterBuiltin("index", bfIndex)
	RegisterBuiltin("rindex", bfRindex)
	RegisterBuiltin("strsub", bfStrsub)
	RegisterBuiltin("upcase", bfUpcase)
	RegisterBuiltin("downcase", bfDowncase)
	RegisterBuiltin("explode", bfExplode)
	RegisterBuiltin("match", bfMatch)
	RegisterBuiltin("rmatch", bfRmatch)
}

// strcmp(a, b) is case-sensitive, unlike the == operator.
func bfStrcmp(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	a, e := wantStr(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	b, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	return value.NewInt(int64(strings.Compare(a, b))), value.ErrNone
}

func strIndexArgs(args []value.Var) (string, string, bool, value.Err) {
	if e := checkArgc(args, 2, 3); e != value.ErrNone {
		return "", "", false, e
	}
	s, e := wantStr(args[0])
	if e != value.ErrNone {
		return "", "", false, e
	}
	sub, e := wantStr(args[1])
	if e != value.ErrNone {
		return "", "", false, e
	}
	caseMatters := false
	if len(args) == 3 {
		caseMatters = args[2].Truthy()
	}
	return s, sub, caseMatters, value.ErrNone
}

// index(str, sub [, case-matters]) returns the 1-based position or 0.
func bfIndex(ctx *Context, args []value.Var) (value.Var, value.Err) {
	s, sub, caseMatters, e := strIndexArgs(args)
	if e != value.ErrNone {
		return value.None, e
	}
	if !caseMatters {
		s, sub = strings.ToLower(s), strings.ToLower(sub)
	}
	return value.NewInt(int64(strings.Index(s, sub) + 1)), value.ErrNone
}

func bfRindex(ctx *Context, args []value.Var) (value.Var, value.Err) {
	s, sub, caseMatters, e := strIndexArgs(args)
	if e != value.ErrNone {
		return value.None, e
	}
	if !caseMatters {
		s, sub = strings.ToLower(s), strings.ToLower(sub)
	}
	return value.NewInt(int64(strings.LastIndex(s, sub) + 1)), value.ErrNone
}

// strsub(subject, what, with [, case-matters]) replaces every
// occurrence.
func bfStrsub(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 3, 4); e != value.ErrNone {
		return value.None, e
	}
	subject, e := wantStr(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	what, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	with, e := wantStr(args[2])
	if e != value.ErrNone {
		return value.None, e
	}
	if what == "" {
		return value.None, value.ErrInvArg
	}
	caseMatters := len(args) == 4 && args[3].Truthy()
	if caseMatters {
		return value.NewStr(strings.ReplaceAll(subject, what, with)), value.ErrNone
	}
	var b strings.Builder
	lower, lwhat := strings.ToLower(subject), strings.ToLower(what)
	for len(subject) > 0 {
		i := strings.Index(lower, lwhat)
		if i < 0 {
			b.WriteString(subject)
			break
		}
		b.WriteString(subject[:i])
		b.WriteString(with)
		subject = subject[i+len(what):]
		lower = lower[i+len(what):]
	}
	return value.NewStr(b.String()), value.ErrNone
}

func bfUpcase(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	s, e := wantStr(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	return value.NewStr(strings.ToUpper(s)), value.ErrNone
}

func bfDowncase(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	s, e := wantStr(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	return value.NewStr(strings.ToLower(s)), value.ErrNone
}

// explode(str [, sep]) splits on runs of the separator (default space).
func bfExplode(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 2); e != value.ErrNone {
		return value.None, e
	}
	s, e := wantStr(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	sep := " "
	if len(args) == 2 {
		sep, e = wantStr(args[1])
		if e != value.ErrNone {
			return value.None, e
		}
		if sep == "" {
			return value.None, value.ErrInvArg
		}
	}
	var out []value.Var
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, value.NewStr(part))
		}
	}
	if out == nil {
		out = []value.Var{}
	}
	return value.NewList(out), value.ErrNone
}

// match/rmatch dispatch into the legacy pattern matcher. The result is
// {start, end, replacements, subject} or {} on no match, keeping the
// shape command-parsing verbs were written against.
func bfMatch(ctx *Context, args []value.Var) (value.Var, value.Err) {
	return runMatch(args, false)
}

func bfRmatch(ctx *Context, args []value.Var) (value.Var, value.Err) {
	return runMatch(args, true)
}

func runMatch(args []value.Var, reverse bool) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 3); e != value.ErrNone {
		return value.None, e
	}
	subject, e := wantStr(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	pattern, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	caseMatters := len(args) == 3 && args[2].Truthy()
	m, ok, err := match.Match(pattern, subject, match.Options{
		CaseMatters: caseMatters,
		Reverse:     reverse,
	})
	if err != nil {
		return value.None, value.ErrInvArg
	}
	if !ok {
		return value.EmptyList(), value.ErrNone
	}
	caps := make([]value.Var, len(m.Captures))
	for i, c := range m.Captures {
		caps[i] = value.NewList([]value.Var{
			value.NewInt(int64(c.Start)),
			value.NewInt(int64(c.End)),
		})
	}
	return value.NewList([]value.Var{
		value.NewInt(int64(m.Start)),
		value.NewInt(int64(m.End)),
		value.NewList(caps),
		value.NewStr(subject),
	}), value.ErrNone
}
