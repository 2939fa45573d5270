package value

import (
	"errors"
	"fmt"
)

var (
	ErrParse    = errors.New("value: malformed literal")
	ErrMismatch = errors.New("value: literal does not match expected type")
)

// LossyConversionError reports a literal that cannot be represented exactly
// by the expected type.
type LossyConversionError struct {
	Literal string
	Target  Kind
}

func (e LossyConversionError) Error() string {
	return fmt.Sprintf("value: %q does not fit %s without loss", e.Literal, e.Target.Name())
}

// ArrayLengthMismatchError reports an array literal whose element count does
// not equal the declared length.
type ArrayLengthMismatchError struct {
	Want int
	Got  int
}

func (e ArrayLengthMismatchError) Error() string {
	return fmt.Sprintf("value: array length mismatch: declared %d, got %d elements", e.Want, e.Got)
}

// UnknownConstructorError reports an enum constructor absent from the
// descriptor's constructor list.
type UnknownConstructorError struct {
	Name string
}

func (e UnknownConstructorError) Error() string {
	return fmt.Sprintf("value: unknown enum constructor %q", e.Name)
}

// PayloadTypeMismatchError reports an enum payload that does not decode
// against the matched constructor's declared type.
type PayloadTypeMismatchError struct {
	Ctor   string
	Reason string
}

func (e PayloadTypeMismatchError) Error() string {
	return fmt.Sprintf("value: payload of constructor %q: %s", e.Ctor, e.Reason)
}
