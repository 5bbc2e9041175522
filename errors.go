package strata

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations invoked after Close. Stats
	// and ResetStats are the exception and keep working.
	ErrClosed = errors.New("strata: cache is closed")

	// ErrInvalidValue marks values the configured codec cannot represent.
	// Match with errors.Is; the codec's own error is wrapped alongside.
	ErrInvalidValue = errors.New("strata: invalid value")
)

func invalidValue(key string, err error) error {
	return fmt.Errorf("%w: encode %q: %w", ErrInvalidValue, key, err)
}
