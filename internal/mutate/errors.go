package mutate

import (
	"errors"
	"fmt"

	"checklist-cli/internal/model"
)

var (
	ErrInvalidIndex = errors.New("invalid index")
	ErrInvalidName  = errors.New("invalid name")
	ErrNotFound     = errors.New("not found")
	ErrDuplicateID  = errors.New("duplicate id")
)

type NotFoundError struct {
	Kind model.Kind
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IndexError reports which bound was violated. It matches ErrInvalidIndex.
type IndexError struct {
	ParentID string
	From     int
	To       int
	Len      int
}

func (e IndexError) Error() string {
	return fmt.Sprintf("invalid index: move %d -> %d in %s (len %d)", e.From, e.To, e.ParentID, e.Len)
}

func (e IndexError) Is(target error) bool { return target == ErrInvalidIndex }
