package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/pkg/logger"
)

var ErrTokenUnavailable = errors.New("session: token unavailable")

// Session is one signed-in identity plus the access token kept fresh for it.
type Session struct {
	identity *entity.Identity
	issuer   TokenIssuer
	template string
	interval time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	onRefresh func(token string, expiresAt time.Time)

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type Option func(*Session)

// OnRefresh registers a callback for every freshly issued token.
func OnRefresh(fn func(token string, expiresAt time.Time)) Option {
	return func(s *Session) { s.onRefresh = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func New(identity *entity.Identity, issuer TokenIssuer, template string, interval time.Duration, opts ...Option) *Session {
	s := &Session{
		identity: identity,
		issuer:   issuer,
		template: template,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns nil for a signed-out session.
func (s *Session) CurrentUser() *entity.Identity {
	if s == nil || s.identity == nil {
		return nil
	}
	identity := *s.identity
	return &identity
}

// AccessToken returns the last issued token while it is still valid.
func (s *Session) AccessToken() (string, error) {
	if s == nil || s.identity == nil {
		return "", ErrTokenUnavailable
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" || !s.now().Before(s.expiresAt) {
		return "", ErrTokenUnavailable
	}
	return s.token, nil
}

// Refresh requests a new token. On failure the previous token is kept.
func (s *Session) Refresh(ctx context.Context) error {
	if s.identity == nil {
		return ErrTokenUnavailable
	}

	token, expiresAt, err := s.issuer.Issue(ctx, s.identity.UID, s.template)
	if err != nil {
		logger.Warn("Session: token refresh for %s failed: %v", s.identity.UID, err)
		return err
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = expiresAt
	callback := s.onRefresh
	s.mu.Unlock()

	if callback != nil {
		callback(token, expiresAt)
	}
	return nil
}

// Start refreshes once and then on every interval until Stop or ctx ends.
func (s *Session) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	_ = s.Refresh(ctx)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.Refresh(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the refresh loop started by Start and waits for it.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}
