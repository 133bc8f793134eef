package value

// Err is an in-language error code. Error codes are ordinary values:
// built-ins return them, programs compare and raise them, and only an
// explicit raise (or strict builtin failure) turns one into an
// exception that unwinds frames.
type Err int64

const (
	ErrNone    Err = iota // E_NONE: no error
	ErrType               // E_TYPE: type mismatch
	ErrDiv                // E_DIV: division by zero
	ErrPerm               // E_PERM: permission denied
	ErrPropNF             // E_PROPNF: property not found
	ErrVerbNF             // E_VERBNF: verb not found
	ErrVarNF              // E_VARNF: variable not found
	ErrInvInd             // E_INVIND: invalid indirection
	ErrRecMove            // E_RECMOVE: recursive move
	ErrMaxRec             // E_MAXREC: too-deep recursion
	ErrRange              // E_RANGE: index out of range
	ErrArgs               // E_ARGS: wrong number of arguments
	ErrNacc               // E_NACC: move refused by destination
	ErrInvArg             // E_INVARG: invalid argument
	ErrQuota              // E_QUOTA: resource limit exceeded
	ErrFloat              // E_FLOAT: floating-point error
)

var errNames = [...]string{
	"E_NONE", "E_TYPE", "E_DIV", "E_PERM", "E_PROPNF", "E_VERBNF",
	"E_VARNF", "E_INVIND", "E_RECMOVE", "E_MAXREC", "E_RANGE",
	"E_ARGS", "E_NACC", "E_INVARG", "E_QUOTA", "E_FLOAT",
}

var errMessages = [...]string{
	"No error",
	"Type mismatch",
	"Division by zero",
	"Permission denied",
	"Property not found",
	"Verb not found",
	"Variable not found",
	"Invalid indirection",
	"Recursive move",
	"Too many verb calls",
	"Range error",
	"Incorrect number of arguments",
	"Move refused by destination",
	"Invalid argument",
	"Resource limit exceeded",
	"Floating-point arithmetic error",
}

// String returns the literal name, e.g. "E_TYPE".
func (e Err) String() string {
	if e >= 0 && int(e) < len(errNames) {
		return errNames[e]
	}
	return "E_NONE"
}

// Message returns the default human-readable message for the code.
func (e Err) Message() string {
	if e >= 0 && int(e) < len(errMessages) {
		return errMessages[e]
	}
	return "Unknown error"
}

// ErrByName resolves a literal name like "E_PERM" to its code.
func ErrByName(name string) (Err, bool) {
	for i, n := range errNames {
		if n == name {
			return Err(i), true
		}
	}
	return ErrNone, false
}
