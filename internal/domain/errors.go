package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates that no entity matches the requested id.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation indicates a required field is missing or invalid.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrStorageFault indicates the underlying storage failed for reasons
	// unrelated to entity validity.
	ErrStorageFault = errors.New("storage fault")
)

// ValidationError carries field level messages for a rejected entity.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " " + e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", ErrConstraintViolation, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrConstraintViolation
}

// StorageError wraps a backend failure. The original error stays reachable
// through errors.Unwrap.
type StorageError struct {
	Op  string
	Err error
}

// StorageFault wraps err as a *StorageError, returning nil for a nil err.
func StorageFault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageFault
}
