package repository

import (
	"context"
	"sync/atomic"
	"time"

	"scams/internal/domain"
	"scams/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionStore serves from primary until it errors, then from fallback,
// probing primary again once per recoveryInterval.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary session store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary reports whether the call should go to primary, allowing one
// probe after the recovery interval.
func (r *FailoverSessionStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSessionStore) primaryOK() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary session store recovered")
	}
}

func (r *FailoverSessionStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, token)
		if err == nil {
			r.primaryOK()
			if session != nil {
				return session, nil
			}
			// sessions written while primary was down live only in fallback
			return r.fallback.GetSession(ctx, token)
		}
		r.markDown(err)
	}

	return r.fallback.GetSession(ctx, token)
}

func (r *FailoverSessionStore) SetSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.SetSession(ctx, session)
		if err == nil {
			r.primaryOK()
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetSession(ctx, session)
}

func (r *FailoverSessionStore) DeleteSession(ctx context.Context, token string) error {
	// удаляем из обоих хранилищ: сессия могла быть создана во время отказа
	_ = r.fallback.DeleteSession(ctx, token)
	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, token)
		if err == nil {
			r.primaryOK()
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.primaryOK()
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
