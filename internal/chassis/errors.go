package chassis

import "fmt"

// Kind tags the category of a chassis Error so callers can switch on
// cause rather than parsing message text, while the message text
// itself still carries the prefixes the original driver surfaced to
// its callers.
type Kind int

const (
	KindNoSerial Kind = iota
	KindIoError
	KindNotInitialized
	KindIllegalArgument
	KindInfiniteAction
	KindActionCanceled
	KindNotAPm1Chassis
	KindChassisLocked
	KindCriticalError
	KindOther
)

// Error is the chassis SDK's single error type, a tagged union over
// Kind rather than a tree of sentinel values.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIoError:
		return "IO Exception: " + e.Msg
	case KindNotInitialized:
		return "chassis has not been initialized"
	case KindIllegalArgument:
		return e.Msg
	case KindInfiniteAction:
		return "this action will never complete"
	case KindActionCanceled:
		return "action canceled"
	case KindNotAPm1Chassis:
		return "not a pm1 chassis"
	case KindChassisLocked:
		return "chassis has been locked"
	case KindCriticalError:
		return "critical error: " + e.Msg
	case KindNoSerial:
		return "no serial port available: " + e.Msg
	default:
		return e.Msg
	}
}

func ErrNoSerial(msg string) *Error             { return &Error{Kind: KindNoSerial, Msg: msg} }
func ErrIO(format string, a ...any) *Error       { return &Error{Kind: KindIoError, Msg: fmt.Sprintf(format, a...)} }
func ErrNotInitialized() *Error                  { return &Error{Kind: KindNotInitialized} }
func ErrIllegalArgument(format string, a ...any) *Error {
	return &Error{Kind: KindIllegalArgument, Msg: fmt.Sprintf(format, a...)}
}
func ErrInfiniteAction() *Error   { return &Error{Kind: KindInfiniteAction} }
func ErrActionCanceled() *Error   { return &Error{Kind: KindActionCanceled} }
func ErrNotAPm1Chassis() *Error   { return &Error{Kind: KindNotAPm1Chassis} }
func ErrChassisLocked() *Error    { return &Error{Kind: KindChassisLocked} }
func ErrCritical(format string, a ...any) *Error {
	return &Error{Kind: KindCriticalError, Msg: fmt.Sprintf(format, a...)}
}
