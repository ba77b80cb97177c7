package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/ebee_shop/pkg/logging"
)

// Effect is one post-commit step. Run must be safe to call again after a
// failed attempt.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

// Saga runs effects after the primary write is committed. Every effect is
// attempted in order; a failing effect never stops the ones after it and
// never undoes the commit.
type Saga struct {
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

func (s Saga) attempts() int {
	if s.Attempts > 0 {
		return s.Attempts
	}
	return 1
}

func (s Saga) Run(ctx context.Context, effects ...Effect) error {
	l := logging.FromContext(ctx)
	// request cancellation must not cut effects short
	base := context.WithoutCancel(ctx)

	var errs []error
	for _, e := range effects {
		if err := s.runOne(base, e); err != nil {
			l.Error("side_effect_failed", "effect", e.Name, "attempts", s.attempts(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSideEffect, errors.Join(errs...))
}

func (s Saga) runOne(ctx context.Context, e Effect) error {
	var err error
	for attempt := 1; attempt <= s.attempts(); attempt++ {
		ectx, cancel := ctx, context.CancelFunc(func() {})
		if s.Timeout > 0 {
			ectx, cancel = context.WithTimeout(ctx, s.Timeout)
		}
		err = e.Run(ectx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < s.attempts() && s.Backoff > 0 {
			time.Sleep(time.Duration(attempt) * s.Backoff)
		}
	}
	return err
}
