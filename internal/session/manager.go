package session

import (
	"context"
	"errors"
	"time"

	"rice-quality-analyzer/internal/pkg/jwtutil"
)

// Manager maps signed cookie tokens to stored session state.
type Manager struct {
	store      Store
	secret     string
	cookieName string
	ttl        time.Duration
}

func NewManager(store Store, secret, cookieName string, ttl time.Duration) *Manager {
	if cookieName == "" {
		cookieName = "rqa_session"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Manager{store: store, secret: secret, cookieName: cookieName, ttl: ttl}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Resolve returns the state addressed by token. A valid token whose state has
// expired from the store yields an empty state under the same id. A missing, forged
// or expired token yields a brand new state and issued=true, meaning the caller must
// hand out a new token.
func (m *Manager) Resolve(ctx context.Context, token string) (state *State, issued bool, err error) {
	if token != "" {
		if claims, parseErr := jwtutil.ParseToken(m.secret, token); parseErr == nil {
			state, err = m.store.Load(ctx, claims.SessionID)
			switch {
			case err == nil:
				return state, false, nil
			case errors.Is(err, ErrNotFound):
				return &State{ID: claims.SessionID, UpdatedAt: time.Now()}, false, nil
			default:
				return nil, false, err
			}
		}
	}
	return NewState(), true, nil
}

// Token signs the session id for the cookie.
func (m *Manager) Token(state *State) (string, error) {
	return jwtutil.GenerateToken(m.secret, m.ttl, state.ID)
}

func (m *Manager) Save(ctx context.Context, state *State) error {
	return m.store.Save(ctx, state)
}

func (m *Manager) Delete(ctx context.Context, state *State) error {
	return m.store.Delete(ctx, state.ID)
}
