package value

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Vars cross process boundaries in two places: graph checkpoints and
// suspended-task snapshots. Both use canonical CBOR so identical values
// always produce identical bytes.

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEncMode = em
}

// wireVar is the serialized shape of a Var.
type wireVar struct {
	Kind uint8      `cbor:"1,keyasint"`
	Int  int64      `cbor:"2,keyasint,omitempty"`
	Flt  float64    `cbor:"3,keyasint,omitempty"`
	Str  string     `cbor:"4,keyasint,omitempty"`
	List []wireVar  `cbor:"5,keyasint,omitempty"`
	Map  []wirePair `cbor:"6,keyasint,omitempty"`
	Bin  []byte     `cbor:"7,keyasint,omitempty"`
}

type wirePair struct {
	Key wireVar `cbor:"1,keyasint"`
	Val wireVar `cbor:"2,keyasint"`
}

func (v Var) toWire() wireVar {
	w := wireVar{Kind: uint8(v.kind)}
	switch v.kind {
	case KindBool, KindInt, KindObj, KindErr:
		w.Int = v.i
	case KindFloat:
		w.Flt = v.f
	case KindStr:
		w.Str = v.s
	case KindList:
		w.List = make([]wireVar, len(v.l))
		for i, e := range v.l {
			w.List[i] = e.toWire()
		}
	case KindMap:
		w.Map = make([]wirePair, len(v.m))
		for i, p := range v.m {
			w.Map[i] = wirePair{Key: p.Key.toWire(), Val: p.Val.toWire()}
		}
	case KindBinary:
		w.Bin = v.b
	}
	return w
}

func fromWire(w wireVar) (Var, error) {
	switch Kind(w.Kind) {
	case KindNone:
		return None, nil
	case KindBool:
		return NewBool(w.Int != 0), nil
	case KindInt:
		return NewInt(w.Int), nil
	case KindFloat:
		return NewFloat(w.Flt), nil
	case KindStr:
		return NewStr(w.Str), nil
	case KindObj:
		return NewObj(Objid(w.Int)), nil
	case KindErr:
		return NewErr(Err(w.Int)), nil
	case KindList:
		l := make([]Var, len(w.List))
		for i, e := range w.List {
			v, err := fromWire(e)
			if err != nil {
				return None, err
			}
			l[i] = v
		}
		return NewList(l), nil
	case KindMap:
		pairs := make([]Pair, 0, len(w.Map))
		for _, p := range w.Map {
			k, err := fromWire(p.Key)
			if err != nil {
				return None, err
			}
			v, err := fromWire(p.Val)
			if err != nil {
				return None, err
			}
			pairs = append(pairs, Pair{Key: k, Val: v})
		}
		return NewMap(pairs), nil
	case KindBinary:
		return NewBinary(w.Bin), nil
	}
	return None, fmt.Errorf("unknown var kind %d", w.Kind)
}

// MarshalCBOR implements cbor.Marshaler.
func (v Var) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(v.toWire())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Var) UnmarshalCBOR(data []byte) error {
	var w wireVar
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	got, err := fromWire(w)
	if err != nil {
		return err
	}
	*v = got
	return nil
}

// MarshalVar encodes a Var to canonical CBOR bytes.
func MarshalVar(v Var) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// UnmarshalVar decodes CBOR bytes produced by MarshalVar.
func UnmarshalVar(data []byte) (Var, error) {
	var v Var
	if err := cbor.Unmarshal(data, &v); err != nil {
		return None, err
	}
	return v, nil
}
