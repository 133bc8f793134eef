package match

import (
	"strconv"
	"strings"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Preposition table
// ---------------------------------------------------------------------------

// Prepositions lists the recognized preposition spellings; spellings
// separated by '/' are aliases of the same entry. Verb argument specs
// store an index into this table.
var Prepositions = []string{
	"with/using",
	"at/to",
	"in front of",
	"in/inside/into",
	"on top of/on/onto/upon",
	"out of/from inside/from",
	"over",
	"through",
	"under/underneath/beneath",
	"behind",
	"beside",
	"for/about",
	"is",
	"as",
	"off/off of",
}

// PrepIndex finds the table index for a preposition word sequence, or
// -1 when it is not a preposition.
func PrepIndex(words string) int {
	for i, entry := range Prepositions {
		for _, alias := range strings.Split(entry, "/") {
			if strings.EqualFold(words, alias) {
				return i
			}
		}
	}
	return -1
}

// PrepName returns the canonical (first) spelling of entry i.
func PrepName(i int) string {
	if i < 0 || i >= len(Prepositions) {
		return ""
	}
	return strings.Split(Prepositions[i], "/")[0]
}

// ---------------------------------------------------------------------------
// Command parsing
// ---------------------------------------------------------------------------

// ParsedCommand is a player input line split into the traditional
// "verb dobj prep iobj" shape.
type ParsedCommand struct {
	Verb    string
	Argstr  string
	Args    []string
	Dobjstr string
	Prep    int // index into Prepositions, or -1
	Prepstr string
	Iobjstr string
}

// ParseCommand tokenizes one input line. The say/emote shorthands
// ("foo, :smiles) rewrite into their verb forms before splitting.
// Quoted strings stay single words.
func ParseCommand(line string) ParsedCommand {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "\""):
		line = "say " + line[1:]
	case strings.HasPrefix(line, ":"):
		line = "emote " + line[1:]
	case strings.HasPrefix(line, ";"):
		line = "eval " + line[1:]
	}
	words := splitWords(line)
	if len(words) == 0 {
		return ParsedCommand{Prep: -1}
	}
	verb := words[0]
	args := words[1:]
	argstr := strings.TrimSpace(strings.TrimPrefix(line, words[0]))

	cmd := ParsedCommand{
		Verb:   verb,
		Argstr: argstr,
		Args:   args,
		Prep:   -1,
	}

	// Search for the longest preposition starting at each position.
	for i := 0; i < len(args); i++ {
		for take := 3; take >= 1; take-- {
			if i+take > len(args) {
				continue
			}
			cand := strings.Join(args[i:i+take], " ")
			if p := PrepIndex(cand); p >= 0 {
				cmd.Prep = p
				cmd.Prepstr = cand
				cmd.Dobjstr = strings.Join(args[:i], " ")
				cmd.Iobjstr = strings.Join(args[i+take:], " ")
				return cmd
			}
		}
	}
	cmd.Dobjstr = strings.Join(args, " ")
	return cmd
}

// splitWords splits on whitespace, honoring double-quoted spans.
func splitWords(line string) []string {
	var words []string
	var b strings.Builder
	inQuote := false
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case c == ' ' || c == '\t':
			if inQuote {
				b.WriteByte(c)
			} else {
				flush()
			}
		default:
			b.WriteByte(c)
		}
	}
	flush()
	return words
}

// ---------------------------------------------------------------------------
// Object matching
// ---------------------------------------------------------------------------

// Environment is what object matching needs from the world: validity,
// names, and the player's surroundings. The scheduler adapts the store
// transaction to this.
type Environment interface {
	Valid(obj value.Objid) bool
	Names(obj value.Objid) []string
	Location(player value.Objid) value.Objid
	Surroundings(player value.Objid) []value.Objid
}

// MatchObject resolves an object name the way command parsing does:
// "" → NOTHING, "#123" → that object, "me"/"here" → the player and
// their location, otherwise a name/alias search over the player's
// surroundings. Exact matches beat prefix matches; two candidates at
// the same strength is AMBIGUOUS; none is FAILED.
func MatchObject(env Environment, player value.Objid, name string) value.Objid {
	name = strings.TrimSpace(name)
	if name == "" {
		return value.Nothing
	}
	if strings.HasPrefix(name, "#") {
		n, err := strconv.ParseInt(name[1:], 10, 64)
		if err == nil && env.Valid(value.Objid(n)) {
			return value.Objid(n)
		}
		return value.Failed
	}
	if strings.EqualFold(name, "me") {
		return player
	}
	if strings.EqualFold(name, "here") {
		return env.Location(player)
	}

	exact := value.Failed
	prefix := value.Failed
	for _, obj := range env.Surroundings(player) {
		if !env.Valid(obj) {
			continue
		}
		for _, alias := range env.Names(obj) {
			if strings.EqualFold(alias, name) {
				if exact == value.Failed || exact == obj {
					exact = obj
				} else {
					exact = value.Ambiguous
				}
			} else if len(name) < len(alias) && strings.EqualFold(alias[:len(name)], name) {
				if prefix == value.Failed || prefix == obj {
					prefix = obj
				} else {
					prefix = value.Ambiguous
				}
			}
		}
	}
	if exact != value.Failed {
		return exact
	}
	return prefix
}
