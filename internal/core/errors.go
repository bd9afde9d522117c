package core

import "fmt"

// ValidationError reports a malformed or missing required field on create.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a get or delete against a nonexistent receipt id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("receipt %d not found", e.ID)
}

// DuplicateImageError reports that an image with the same content digest is
// already archived. It carries the id of the existing receipt so the caller
// can report it instead of failing outright.
type DuplicateImageError struct {
	ReceiptID int64
}

func (e *DuplicateImageError) Error() string {
	return fmt.Sprintf("image already archived as receipt %d", e.ReceiptID)
}

// InvalidQueryError reports an empty or malformed structured query parameter.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

// UnresolvedIntentError reports that free text could not be classified into
// any query operation.
type UnresolvedIntentError struct {
	Utterance string
}

func (e *UnresolvedIntentError) Error() string {
	return fmt.Sprintf("could not understand %q", e.Utterance)
}
