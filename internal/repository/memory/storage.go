// Package memory holds in-memory repository implementations. They back unit
// tests and single-process deployments that run without postgres.
package memory

import (
	"context"

	"github.com/bilitade/hubbo/internal/repository"
)

type Storage struct {
	users   *UserRepo
	refresh *RefreshTokenRepo
}

func NewStorage() *Storage {
	return &Storage{
		users:   NewUserRepo(),
		refresh: NewRefreshTokenRepo(),
	}
}

func (s *Storage) User() repository.UserRepo { return s.users }

func (s *Storage) Refresh() repository.RefreshTokenRepo { return s.refresh }

// Users returns the concrete user repo for test seeding helpers.
func (s *Storage) Users() *UserRepo { return s.users }

// InTx runs fn directly: the store is process local, individual operations
// are already atomic and there is nothing to roll back.
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}
