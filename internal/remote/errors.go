package remote

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// Kind classifies a control-plane failure.
type Kind int

const (
	KindOther    Kind = iota // any other remote failure; fatal, not retried
	KindConflict             // the target already exists
	KindNotFound             // an expected remote object is absent
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	}
	return "other"
}

// Error is a classified control-plane error.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// conflictCodes and notFoundCodes are the API error codes returned by the
// gateway, function and identity control planes.
var (
	conflictCodes = map[string]bool{
		"ConflictException":         true,
		"ResourceConflictException": true,
		"EntityAlreadyExists":       true,
	}
	notFoundCodes = map[string]bool{
		"NotFoundException":         true,
		"ResourceNotFoundException": true,
		"NoSuchEntity":              true,
	}
)

// Classify wraps err with the kind derived from its API error code.
// A nil err stays nil; an already classified error is returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	kind := KindOther
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch code := apiErr.ErrorCode(); {
		case conflictCodes[code]:
			kind = KindConflict
		case notFoundCodes[code]:
			kind = KindNotFound
		}
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewError builds a classified error without an underlying SDK error.
func NewError(op string, kind Kind, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, KindOther when it is not classified.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindOther
}

func IsConflict(err error) bool { return err != nil && KindOf(err) == KindConflict }

func IsNotFound(err error) bool { return err != nil && KindOf(err) == KindNotFound }
