package gocachestore

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
)

type sessionRepository struct {
	cache *gocache.Cache
}

var _ form.Repository = (*sessionRepository)(nil)

// NewSessionRepository keeps live sessions in an expiring in-process cache.
// Every save refreshes the clock, so only sessions idle past the TTL are
// dropped.
func NewSessionRepository(conf *core.Config) form.Repository {
	return newSessionRepository(conf.Sessions.TTL, conf.Sessions.CleanupInterval)
}

func newSessionRepository(ttl, cleanup time.Duration) *sessionRepository {
	return &sessionRepository{cache: gocache.New(ttl, cleanup)}
}

func (repo *sessionRepository) SaveSession(_ context.Context, s *form.Session) error {
	repo.cache.Set(s.ID(), s, gocache.DefaultExpiration)
	return nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (*form.Session, error) {
	if s, ok := repo.cache.Get(id); ok {
		return s.(*form.Session), nil
	}
	return nil, form.ErrSessionNotFound
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id string) error {
	repo.cache.Delete(id)
	return nil
}
