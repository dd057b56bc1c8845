package service

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"github.com/bitfantasy/nimo-wms/internal/wms/statemachine"
)

// Error kinds surfaced to callers. Match with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidState        = errors.New("invalid state")
	ErrNothingConfirmed    = errors.New("nothing confirmed")
	ErrNoEligibleDemand    = errors.New("no eligible demand")
	ErrNoOpenManifest      = errors.New("no open manifest")
	ErrMissingDocument     = errors.New("signed form required")
	ErrConcurrencyConflict = repository.ErrConflict
	ErrStoreUnavailable    = repository.ErrStoreUnavailable
	ErrNotFound            = repository.ErrNotFound
)

// errStaleView marks a conflict caused by the caller's outdated view rather
// than a lost race, so re-running the allocation cannot help.
var errStaleView = errors.New("stale view")

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// transitionErr rewrites an illegal transition into ErrInvalidState.
func transitionErr(err error) error {
	if errors.Is(err, statemachine.ErrIllegalTransition) {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return err
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return err
}
