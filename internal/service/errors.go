// Package service contains the token registry, namespace manager and share services.
package service

import (
	"errors"
	"fmt"

	"github.com/and161185/cloudbox/internal/errs"
)

// known are the kinds passed through unchanged from collaborators.
var known = []error{
	errs.ErrNamespaceNotFound,
	errs.ErrEntryNotFound,
	errs.ErrUnsafeName,
	errs.ErrAlreadyExists,
	errs.ErrValidation,
}

// categorize keeps known kinds and files everything else under
// errs.ErrPersistenceUnavailable, preserving the cause for errors.Is/As.
func categorize(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, k := range known {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %w", op, errs.ErrPersistenceUnavailable, err)
}
