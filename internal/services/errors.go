package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrorKind classifies domain failures so transports can map them to responses
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindStateConflict     ErrorKind = "state_conflict"
	KindNotFound          ErrorKind = "not_found"
	KindReferenceMismatch ErrorKind = "reference_mismatch"
	KindForbidden         ErrorKind = "forbidden"
)

// DomainError is a user-facing failure that names the rule that was broken
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same kind, so errors.Is(err, ErrValidation) works
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// Common service errors
var (
	ErrValidation        = &DomainError{Kind: KindValidation, Message: "datos inválidos"}
	ErrStateConflict     = &DomainError{Kind: KindStateConflict, Message: "transición de estado inválida"}
	ErrNotFound          = &DomainError{Kind: KindNotFound, Message: "registro no encontrado"}
	ErrReferenceMismatch = &DomainError{Kind: KindReferenceMismatch, Message: "la referencia no coincide"}
	ErrForbidden         = &DomainError{Kind: KindForbidden, Message: "no autorizado"}
)

func validationError(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func conflictError(format string, args ...any) error {
	return &DomainError{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

func mismatchError(format string, args ...any) error {
	return &DomainError{Kind: KindReferenceMismatch, Message: fmt.Sprintf(format, args...)}
}

func forbiddenError(format string, args ...any) error {
	return &DomainError{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// notFound translates gorm's missing-row error into a domain error naming the entity.
// Any other error is returned wrapped with the entity for context.
func notFound(err error, entity string, id uint) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf("%s %d no encontrado", entity, id), Err: err}
	}
	return fmt.Errorf("load %s %d: %w", entity, id, err)
}

// money formats an amount as operators read it, e.g. $60.00
func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
