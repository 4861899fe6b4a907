package backend

import (
	"errors"
	"fmt"
)

// Kind classifies the fatal error categories raised by the engine layers.
type Kind int

const (
	// KindConstruction marks a bad qubit index or register mismatch.
	KindConstruction Kind = iota
	// KindShape marks a tensor rank or dimension inconsistent with its use.
	KindShape
	// KindTypeMismatch marks mixed dtypes or devices within one operation.
	KindTypeMismatch
	// KindNotSupported marks a primitive the active engine does not provide.
	KindNotSupported
)

// String returns the canonical name of the error kind.
func (k Kind) String() string {
	switch k {
	case KindConstruction:
		return "ConstructionError"
	case KindShape:
		return "ShapeError"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindNotSupported:
		return "NotSupported"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a fatal engine error. Structural errors are raised before any
// expensive contraction work begins.
type Error struct {
	Kind Kind   // error category
	Op   string // operation that failed, e.g. "backend.Tensordot"
	Msg  string // human-readable detail
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
}

// Constructionf builds a ConstructionError for op with a formatted message.
func Constructionf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConstruction, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Shapef builds a ShapeError for op with a formatted message.
func Shapef(op, format string, args ...interface{}) error {
	return &Error{Kind: KindShape, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// TypeMismatchf builds a TypeMismatch error for op with a formatted message.
func TypeMismatchf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindTypeMismatch, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotSupportedf builds a NotSupported error for op with a formatted message.
func NotSupportedf(op, format string, args ...interface{}) error {
	return &Error{Kind: KindNotSupported, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// kindOf extracts the Kind from err, unwrapping as needed.
func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsConstruction reports whether err is a ConstructionError.
func IsConstruction(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConstruction
}

// IsShape reports whether err is a ShapeError.
func IsShape(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindShape
}

// IsTypeMismatch reports whether err is a TypeMismatch error.
func IsTypeMismatch(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTypeMismatch
}

// IsNotSupported reports whether err is a NotSupported error.
func IsNotSupported(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotSupported
}

// NumericalWarning reports a non-fatal numerical issue, such as an imaginary
// residue on a nominally real expectation or a near-zero normalization.
// Values carrying a NumericalWarning remain usable; floating simulation is
// approximate by nature.
type NumericalWarning struct {
	Op      string  // operation that observed the issue
	Residue float64 // magnitude of the offending quantity
	Msg     string  // human-readable detail
}

// Error implements the error interface.
func (w *NumericalWarning) Error() string {
	return fmt.Sprintf("NumericalWarning: %s: %s (residue %.3e)", w.Op, w.Msg, w.Residue)
}

// Warnf builds a NumericalWarning for op.
func Warnf(op string, residue float64, format string, args ...interface{}) *NumericalWarning {
	return &NumericalWarning{Op: op, Residue: residue, Msg: fmt.Sprintf(format, args...)}
}

// IsNumericalWarning reports whether err is a NumericalWarning.
func IsNumericalWarning(err error) bool {
	var w *NumericalWarning
	return errors.As(err, &w)
}
