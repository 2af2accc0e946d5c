package storage

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// NotFoundError names the metric record that was missing. It matches
// ErrNotFound with errors.Is.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: metric %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
