package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// AwaitPolicy controls how long a request waits for the profile worker to
// materialize a profile: a first look after InitialDelay, then up to
// Attempts-1 more looks spaced by Interval.
type AwaitPolicy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	Attempts     int
}

var (
	// DefaultAdminAwait gives the worker one second and looks once.
	DefaultAdminAwait = AwaitPolicy{InitialDelay: time.Second, Interval: time.Second, Attempts: 1}
	// DefaultRegistrationAwait looks ten times at 500ms intervals.
	DefaultRegistrationAwait = AwaitPolicy{InitialDelay: 500 * time.Millisecond, Interval: 500 * time.Millisecond, Attempts: 10}
)

var errProfileMissing = errors.New("profile not materialized yet")

// profileAwaiter polls for the profile of a freshly created identity.
type profileAwaiter struct {
	lookup func(ctx context.Context, authID string) (persistence.Profile, error)
}

// await returns the profile, or errProfileMissing once the policy is exhausted.
func (a profileAwaiter) await(ctx context.Context, authID string, policy AwaitPolicy) (persistence.Profile, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	if policy.InitialDelay > 0 {
		timer := time.NewTimer(policy.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return persistence.Profile{}, ctx.Err()
		case <-timer.C:
		}
	}

	var found persistence.Profile
	op := func() error {
		p, err := a.lookup(ctx, authID)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			return errProfileMissing
		case err != nil:
			return backoff.Permanent(err)
		}
		found = p
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Interval), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		return persistence.Profile{}, err
	}
	return found, nil
}
