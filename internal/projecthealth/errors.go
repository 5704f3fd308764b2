package projecthealth

import (
	"errors"
	"fmt"
)

var (
	ErrParse           = errors.New("parse error")
	ErrType            = errors.New("type error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error carries the failing field alongside one of the sentinel kinds above.
type Error struct {
	Kind  error
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind.Error(), e.Field, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func parseErrorf(field, format string, args ...any) error {
	return &Error{Kind: ErrParse, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func typeErrorf(field, format string, args ...any) error {
	return &Error{Kind: ErrType, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func invalidf(field, format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Field: field, Msg: fmt.Sprintf(format, args...)}
}
