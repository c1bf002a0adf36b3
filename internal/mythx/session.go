package mythx

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// singleflight keys.
const (
	flightLogin   = "login"
	flightRefresh = "refresh"
)

// authorizedCall performs one API call with the given access token.
type authorizedCall func(ctx context.Context, accessToken string) (*Response, error)

// session owns the credentials and the live TokenPair of one Client, and
// executes authorized calls with refresh-and-retry-once on 401.
//
// Concurrent logins and refreshes are coalesced: callers that observe the
// same stale pair share one network exchange. No lock is held across a
// network call.
type session struct {
	creds  Credentials
	auth   *authenticator
	logger *slog.Logger

	// onChange is called with every new pair, outside mu.
	onChange func(TokenPair)

	mu     sync.Mutex
	tokens TokenPair

	flight singleflight.Group
}

// current returns a snapshot of the live pair.
func (s *session) current() TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tokens
}

// store replaces the live pair. Both fields change together.
func (s *session) store(pair TokenPair) {
	s.mu.Lock()
	s.tokens = pair
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(pair)
	}
}

// ensureLogin returns the live pair, logging in first if none is held.
func (s *session) ensureLogin(ctx context.Context) (TokenPair, error) {
	if pair := s.current(); !pair.IsZero() {
		return pair, nil
	}

	return s.share(ctx, flightLogin, func(ctx context.Context) (TokenPair, error) {
		// A login that finished while this flight was being scheduled wins.
		if pair := s.current(); !pair.IsZero() {
			return pair, nil
		}

		pair, err := s.auth.login(ctx, s.creds)
		if err != nil {
			return TokenPair{}, err
		}

		s.store(pair)

		return pair, nil
	})
}

// refreshFrom replaces stale with a freshly issued pair. If another caller
// already replaced stale, the newer pair is returned without a network call.
func (s *session) refreshFrom(ctx context.Context, stale TokenPair) (TokenPair, error) {
	if pair := s.current(); pair.AccessToken != stale.AccessToken && !pair.IsZero() {
		return pair, nil
	}

	return s.share(ctx, flightRefresh, func(ctx context.Context) (TokenPair, error) {
		live := s.current()
		if live.AccessToken != stale.AccessToken && !live.IsZero() {
			return live, nil
		}

		pair, err := s.auth.refresh(ctx, s.creds.Address, live)
		if err != nil {
			return TokenPair{}, err
		}

		s.store(pair)

		return pair, nil
	})
}

// share runs fn once per key across concurrent callers. The flight is
// detached from any one caller's cancellation so that a caller giving up
// does not fail the others; each caller still stops waiting when its own
// context ends.
func (s *session) share(ctx context.Context, key string, fn func(context.Context) (TokenPair, error)) (TokenPair, error) {
	flightCtx := context.WithoutCancel(ctx)

	ch := s.flight.DoChan(key, func() (any, error) {
		return fn(flightCtx)
	})

	select {
	case <-ctx.Done():
		return TokenPair{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return TokenPair{}, res.Err
		}

		if res.Shared {
			s.logger.Debug("joined in-flight token exchange", slog.String("op", key))
		}

		return res.Val.(TokenPair), nil
	}
}

// do executes call with the live access token. A 401 triggers exactly one
// refresh and one retry; every other failure, and a second 401, is returned
// unchanged.
func (s *session) do(ctx context.Context, call authorizedCall) (*Response, error) {
	pair, err := s.ensureLogin(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, pair.AccessToken)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return resp, err
	}

	s.logger.Info("access token rejected, refreshing", slog.String("address", s.creds.Address))

	fresh, err := s.refreshFrom(ctx, pair)
	if err != nil {
		return nil, err
	}

	return call(ctx, fresh.AccessToken)
}
