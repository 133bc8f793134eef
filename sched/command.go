package sched

import (
	"github.com/chazu/moot/db"
	"github.com/chazu/moot/match"
	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

// worldEnv adapts a transaction view to the matcher's environment.
type worldEnv struct {
	tx *db.Tx
}

func (e worldEnv) Valid(obj value.Objid) bool { return e.tx.Valid(obj) }

// Names is an object's name plus its "aliases" property, when that
// holds a list of strings.
func (e worldEnv) Names(obj value.Objid) []string {
	name, err := e.tx.Name(obj)
	if err != value.ErrNone {
		return nil
	}
	names := []string{name}
	if info, err := e.tx.ResolveProp(obj, "aliases"); err == value.ErrNone && info.Value.Kind() == value.KindList {
		for _, a := range info.Value.List() {
			if a.Kind() == value.KindStr {
				names = append(names, a.Str())
			}
		}
	}
	return names
}

func (e worldEnv) Location(player value.Objid) value.Objid {
	loc, err := e.tx.Location(player)
	if err != value.ErrNone {
		return value.Nothing
	}
	return loc
}

func (e worldEnv) Surroundings(player value.Objid) []value.Objid {
	var out []value.Objid
	if c, err := e.tx.Contents(player); err == value.ErrNone {
		out = append(out, c...)
	}
	if loc := e.Location(player); e.tx.Valid(loc) {
		out = append(out, loc)
		if c, err := e.tx.Contents(loc); err == value.ErrNone {
			out = append(out, c...)
		}
	}
	return out
}

// gotArg describes what the command supplied for one object slot, from
// the point of view of candidate: nothing, the candidate itself, or
// some other object.
func gotArg(resolved, candidate value.Objid, str string) vm.ArgMatch {
	if str == "" {
		return vm.ArgNone
	}
	if resolved == candidate {
		return vm.ArgThis
	}
	return vm.ArgAny
}

func strList(ss []string) value.Var {
	out := make([]value.Var, len(ss))
	for i, s := range ss {
		out[i] = value.NewStr(s)
	}
	return value.NewList(out)
}

// submitCommand resolves a command line to a verb and queues it. The
// search order is the player, the player's location, the direct
// object, then the indirect object.
func (s *Scheduler) submitCommand(player value.Objid, line string) (int64, error) {
	cmd := match.ParseCommand(line)
	if cmd.Verb == "" {
		return 0, ErrNoCommandMatch
	}
	tx := s.store.Begin()
	defer tx.Rollback()
	env := worldEnv{tx}

	dobj := match.MatchObject(env, player, cmd.Dobjstr)
	iobj := match.MatchObject(env, player, cmd.Iobjstr)
	loc := env.Location(player)

	seen := map[value.Objid]bool{}
	for _, o := range []value.Objid{player, loc, dobj, iobj} {
		if seen[o] || !tx.Valid(o) {
			continue
		}
		seen[o] = true
		info, e := tx.MatchCommandVerb(o, cmd.Verb,
			gotArg(dobj, o, cmd.Dobjstr), cmd.Prep, gotArg(iobj, o, cmd.Iobjstr))
		if e != value.ErrNone {
			continue
		}
		prog, e := tx.Program(info.Definer, cmd.Verb)
		if e != value.ErrNone {
			s.log.Errorf("verb #%d:%s does not compile", int64(info.Definer), cmd.Verb)
			continue
		}
		frame := vm.NewFrame(prog, o, player, player, info.Definer, info.Owner, cmd.Verb, strList(cmd.Args))
		frame.Vars[vm.SlotArgstr] = value.NewStr(cmd.Argstr)
		frame.Vars[vm.SlotDobj] = value.NewObj(dobj)
		frame.Vars[vm.SlotDobjstr] = value.NewStr(cmd.Dobjstr)
		frame.Vars[vm.SlotPrep] = value.NewInt(int64(cmd.Prep))
		frame.Vars[vm.SlotPrepstr] = value.NewStr(cmd.Prepstr)
		frame.Vars[vm.SlotIobj] = value.NewObj(iobj)
		frame.Vars[vm.SlotIobjstr] = value.NewStr(cmd.Iobjstr)

		t := s.newTask(player, info.Owner, cmd.Verb, o, frame, true)
		s.enqueue(t)
		return t.ID, nil
	}
	return 0, ErrNoCommandMatch
}
