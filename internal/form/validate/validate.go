// Package validate defines the field validation contract and the
// built-in validators derived from field configuration. A validator
// receives the candidate value plus the surrounding document context and
// reports validity with an optional message.
package validate

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Operation is the kind of save the form is working toward.
type Operation string

const (
	// OperationCreate is a first save of a new document.
	OperationCreate Operation = "create"
	// OperationUpdate is a save of an existing document.
	OperationUpdate Operation = "update"
)

// Args is the context handed to every validator invocation.
type Args struct {
	// ID is the document id; empty for new documents and globals.
	ID string
	// User is the authenticated user document, if any.
	User map[string]any
	// Data is the full current form data.
	Data map[string]any
	// SiblingData is the slice of Data at the field's parent path.
	SiblingData map[string]any
	// Operation is create or update.
	Operation Operation
}

// Result is one validation outcome.
type Result struct {
	Valid   bool
	Message string
}

// OK is the positive result.
func OK() Result {
	return Result{Valid: true}
}

// Fail is a negative result carrying the user-facing message.
func Fail(message string) Result {
	return Result{Valid: false, Message: message}
}

// Func validates one field value. A returned error is the analog of a
// thrown exception in the validator and is handled by the binding, not
// by the caller's form logic.
type Func func(ctx context.Context, value any, args Args) (Result, error)

// FromRules adapts ozzo validation rules into a field validator. The
// rule error text becomes the field's error message.
func FromRules(rules ...validation.Rule) Func {
	return func(_ context.Context, value any, _ Args) (Result, error) {
		if err := validation.Validate(value, rules...); err != nil {
			return Fail(err.Error()), nil
		}
		return OK(), nil
	}
}

// Required fails on nil, empty strings, and empty collections.
func Required() Func {
	return FromRules(validation.Required)
}

// Length bounds the length of a string value. Zero max means unbounded.
func Length(min, max int) Func {
	return FromRules(validation.Length(min, max))
}

// All chains validators; the first failure wins.
func All(fns ...Func) Func {
	return func(ctx context.Context, value any, args Args) (Result, error) {
		for _, fn := range fns {
			res, err := fn(ctx, value, args)
			if err != nil {
				return Result{}, err
			}
			if !res.Valid {
				return res, nil
			}
		}
		return OK(), nil
	}
}
