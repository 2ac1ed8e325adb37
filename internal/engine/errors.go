package engine

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/listsync/internal/item"
	"github.com/fyrsmithlabs/listsync/internal/optimistic"
	"github.com/fyrsmithlabs/listsync/internal/syncerr"
)

// MutationError reports a change that was rejected locally or failed
// remotely and was reverted.
type MutationError struct {
	Op     string
	ItemID string
	// Classification describes the failure for display.
	Classification syncerr.Classification
	// RestoreText is the text the user submitted to a failed add, so the
	// input field can be refilled verbatim.
	RestoreText string
	Err         error
}

func (e *MutationError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ItemID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// localError maps a mutator rejection onto the syncerr sentinels so it
// classifies the same way as the equivalent service response.
func localError(err error) error {
	switch {
	case errors.Is(err, optimistic.ErrItemNotFound):
		return fmt.Errorf("%w: %w", syncerr.ErrNotFound, err)
	case errors.Is(err, optimistic.ErrItemBusy),
		errors.Is(err, item.ErrEmptyText),
		errors.Is(err, item.ErrTextTooLong),
		errors.Is(err, item.ErrInvalidScope):
		return fmt.Errorf("%w: %w", syncerr.ErrValidation, err)
	}
	return err
}

func newMutationError(op, id, text string, err error) *MutationError {
	return &MutationError{
		Op:             op,
		ItemID:         id,
		Classification: syncerr.Classify(err),
		RestoreText:    text,
		Err:            err,
	}
}
