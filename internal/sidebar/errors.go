package sidebar

import (
	"fmt"

	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
)

// UnknownCategoryError reports a category reference that is absent from the
// declared category order. DocID is empty when the reference comes from a
// nested category's parent.
type UnknownCategoryError struct {
	Category string
	DocID    string
}

func (e *UnknownCategoryError) Error() string {
	if e.DocID == "" {
		return fmt.Sprintf("%v: parent %q", derrors.ErrUnknownCategory, e.Category)
	}
	return fmt.Sprintf("%v: %q referenced by %q", derrors.ErrUnknownCategory, e.Category, e.DocID)
}

func (e *UnknownCategoryError) Unwrap() error { return derrors.ErrUnknownCategory }
