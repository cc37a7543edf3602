package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/allocation/internal/core/bus"
	"github.com/rl1809/allocation/internal/core/domain"
)

// Dispatcher is the part of the message bus the entrypoints use.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg domain.Message) error
	DispatchAsync(ctx context.Context, msg domain.Message) (*bus.Cascade, error)
}

var errInvalidRequest = errors.New("invalid request")

// parseETA accepts RFC 3339 timestamps and plain dates. Empty means no eta.
func parseETA(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: eta %q", errInvalidRequest, s)
}
