// Package match carries the command-parsing compatibility layer: the
// legacy wildcard pattern matcher consumed by the match/rmatch
// built-ins, the preposition table, and the command-line parser that
// turns raw player input into a verb invocation.
package match

import (
	"fmt"
	"strings"
)

// Options control a pattern match.
type Options struct {
	CaseMatters bool
	Reverse     bool // rightmost match instead of leftmost
}

// Capture is the 1-based inclusive span one '*' wildcard consumed.
// A wildcard that matched nothing has Start = End+1.
type Capture struct {
	Start int
	End   int
}

// Result describes a successful match: the overall 1-based inclusive
// span plus one capture per '*' in the pattern.
type Result struct {
	Start    int
	End      int
	Captures []Capture
}

// Match runs pattern against subject. Pattern syntax: '*' captures any
// run (possibly empty), '?' matches one character, '[abc]' and '[^abc]'
// match a class, '\x' escapes a metacharacter. The pattern may match
// anywhere in the subject; the leftmost (or rightmost, with Reverse)
// position wins.
func Match(pattern, subject string, opts Options) (Result, bool, error) {
	prog, err := parsePattern(pattern)
	if err != nil {
		return Result{}, false, err
	}
	sub := subject
	if !opts.CaseMatters {
		sub = strings.ToLower(sub)
	}
	starts := make([]int, 0, len(sub)+1)
	for i := 0; i <= len(sub); i++ {
		starts = append(starts, i)
	}
	if opts.Reverse {
		for l, r := 0, len(starts)-1; l < r; l, r = l+1, r-1 {
			starts[l], starts[r] = starts[r], starts[l]
		}
	}
	for _, at := range starts {
		caps := make([]Capture, countStars(prog))
		if end, ok := matchHere(prog, 0, sub, at, caps, 0); ok {
			return Result{Start: at + 1, End: end, Captures: caps}, true, nil
		}
	}
	return Result{}, false, nil
}

type elemKind uint8

const (
	elemLiteral elemKind = iota
	elemAny               // ?
	elemStar              // *
	elemClass             // [...]
)

type elem struct {
	kind   elemKind
	ch     byte
	set    map[byte]bool
	negate bool
}

func parsePattern(pattern string) ([]elem, error) {
	lower := strings.ToLower(pattern)
	var prog []elem
	for i := 0; i < len(lower); i++ {
		switch c := lower[i]; c {
		case '*':
			prog = append(prog, elem{kind: elemStar})
		case '?':
			prog = append(prog, elem{kind: elemAny})
		case '\\':
			if i+1 >= len(lower) {
				return nil, fmt.Errorf("pattern ends with escape")
			}
			i++
			prog = append(prog, elem{kind: elemLiteral, ch: lower[i]})
		case '[':
			j := i + 1
			negate := false
			if j < len(lower) && lower[j] == '^' {
				negate = true
				j++
			}
			set := map[byte]bool{}
			for ; j < len(lower) && lower[j] != ']'; j++ {
				if lower[j] == '-' && j+1 < len(lower) && lower[j+1] != ']' && len(set) > 0 {
					lo := lower[j-1]
					hi := lower[j+1]
					for c := lo; c <= hi; c++ {
						set[c] = true
					}
					j++
					continue
				}
				set[lower[j]] = true
			}
			if j >= len(lower) {
				return nil, fmt.Errorf("unterminated character class")
			}
			i = j
			prog = append(prog, elem{kind: elemClass, set: set, negate: negate})
		default:
			prog = append(prog, elem{kind: elemLiteral, ch: c})
		}
	}
	return prog, nil
}

func countStars(prog []elem) int {
	n := 0
	for _, e := range prog {
		if e.kind == elemStar {
			n++
		}
	}
	return n
}

// matchHere matches prog[pi:] against sub[si:], filling captures.
// Returns the 1-based inclusive end position of the whole match.
func matchHere(prog []elem, pi int, sub string, si int, caps []Capture, star int) (int, bool) {
	if pi == len(prog) {
		return si, true
	}
	e := prog[pi]
	switch e.kind {
	case elemStar:
		// Greedy with backtracking.
		for take := len(sub) - si; take >= 0; take-- {
			caps[star] = Capture{Start: si + 1, End: si + take}
			if end, ok := matchHere(prog, pi+1, sub, si+take, caps, star+1); ok {
				return end, true
			}
		}
		return 0, false
	case elemAny:
		if si >= len(sub) {
			return 0, false
		}
		return matchHere(prog, pi+1, sub, si+1, caps, star)
	case elemClass:
		if si >= len(sub) {
			return 0, false
		}
		in := e.set[sub[si]]
		if in == e.negate {
			return 0, false
		}
		return matchHere(prog, pi+1, sub, si+1, caps, star)
	default:
		if si >= len(sub) || sub[si] != e.ch {
			return 0, false
		}
		return matchHere(prog, pi+1, sub, si+1, caps, star)
	}
}
