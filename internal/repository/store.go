package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories that share one *gorm.DB. Inside
// Transaction every repository of the callback's Store runs on the same tx.
type Store struct {
	db *gorm.DB

	Tiers       ITierRepository
	Memberships IMembershipRepository
	Boosts      IBoostRepository
	Servers     IServerRepository
	Panels      IPanelRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Tiers:       NewTierRepository(db),
		Memberships: NewMembershipRepository(db),
		Boosts:      NewBoostRepository(db),
		Servers:     NewServerRepository(db),
		Panels:      NewPanelRepository(db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn inside a single database transaction. Returning an
// error from fn rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// IsDuplicateKey reports whether err is a unique constraint violation from
// either PostgreSQL or SQLite.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// forUpdate locks the selected rows until the surrounding transaction ends.
// SQLite ignores the clause; its writer lock already serializes transactions.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
