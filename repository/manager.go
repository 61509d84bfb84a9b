package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// Manager exposes the repositories backed by a single database handle.
type Manager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Principals() *Principals
	DB() *bun.DB
}

type mngr struct {
	db         *bun.DB
	principals *Principals
}

// NewManager builds the repositories for db.
func NewManager(db *bun.DB, opts ...PrincipalsOption) Manager {
	return &mngr{
		db:         db,
		principals: NewPrincipals(db, opts...),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.principals == nil {
		return errors.New("repository principals should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Principals() *Principals {
	return m.principals
}

func (m mngr) DB() *bun.DB {
	return m.db
}
