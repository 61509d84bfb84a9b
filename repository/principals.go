package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	bunrepo "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	auth "github.com/goliatone/go-shop-auth"
)

const pgUniqueViolation = "23505"

// Principals is the bun backed auth.AccountDirectory.
type Principals struct {
	db        bun.IDB
	repo      bunrepo.Repository[*auth.Principal]
	hashedIDs bool
	clock     auth.Clock
}

var _ auth.AccountDirectory = (*Principals)(nil)

type PrincipalsOption func(*Principals)

// WithHashedIDs derives new principal ids from the email instead of random v4 ids.
func WithHashedIDs() PrincipalsOption {
	return func(p *Principals) {
		p.hashedIDs = true
	}
}

// WithClock sets the time source for created_at and updated_at.
func WithClock(clock auth.Clock) PrincipalsOption {
	return func(p *Principals) {
		if clock != nil {
			p.clock = clock
		}
	}
}

func NewPrincipals(db bun.IDB, opts ...PrincipalsOption) *Principals {
	p := &Principals{
		db: db,
		repo: bunrepo.NewRepository(db, bunrepo.ModelHandlers[*auth.Principal]{
			NewRecord: func() *auth.Principal { return new(auth.Principal) },
			GetID: func(p *auth.Principal) uuid.UUID {
				if p == nil {
					return uuid.Nil
				}
				return p.ID
			},
			SetID: func(p *auth.Principal, id uuid.UUID) {
				p.ID = id
			},
			GetIdentifier: func() string {
				return "email"
			},
		}),
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Tx returns a copy of the repository bound to tx.
func (r *Principals) Tx(tx bun.IDB) *Principals {
	cp := *r
	cp.db = tx
	return &cp
}

func (r *Principals) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	email = auth.NormalizeEmail(email)
	if email == "" {
		return nil, auth.ErrPrincipalNotFound
	}

	record, err := r.repo.GetByIdentifierTx(ctx, r.db, email)
	if err != nil {
		return nil, notFoundOr("find by email", err)
	}
	return record, nil
}

func (r *Principals) FindByID(ctx context.Context, id string) (*auth.Principal, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, auth.ErrPrincipalNotFound
	}

	record, err := r.repo.GetByIDTx(ctx, r.db, uid.String())
	if err != nil {
		return nil, notFoundOr("find by id", err)
	}
	return record, nil
}

func (r *Principals) Create(ctx context.Context, record *auth.Principal) (*auth.Principal, error) {
	r.prepareDefaults(record)

	if _, err := r.repo.CreateTx(ctx, r.db, record); err != nil {
		if isUniqueViolation(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, auth.Unavailable("create principal", err)
	}
	return record, nil
}

// Save updates record by primary key. With columns only those are written
// and record is refreshed from the stored row, so concurrent writes to
// other columns survive.
func (r *Principals) Save(ctx context.Context, record *auth.Principal, columns ...string) (*auth.Principal, error) {
	if record == nil || record.ID == uuid.Nil {
		return nil, auth.ErrPrincipalNotFound
	}

	record.Email = auth.NormalizeEmail(record.Email)
	now := r.clock()
	record.UpdatedAt = &now

	if len(columns) > 0 {
		cols := append([]string{"updated_at"}, columns...)
		err := r.db.NewUpdate().
			Model(record).
			Column(cols...).
			WherePK().
			Returning("*").
			Scan(ctx)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, auth.ErrDuplicateEmail
			}
			return nil, notFoundOr("save principal", err)
		}
		return record, nil
	}

	res, err := r.db.NewUpdate().
		Model(record).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, auth.ErrDuplicateEmail
		}
		return nil, auth.Unavailable("save principal", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, auth.ErrPrincipalNotFound
	}
	return record, nil
}

// List pages through principals ordered by creation time.
func (r *Principals) List(ctx context.Context, limit, offset int) ([]*auth.Principal, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	records, total, err := r.repo.ListTx(ctx, r.db,
		bunrepo.OrderBy("created_at ASC", "id ASC"),
		bunrepo.Paginate(limit, offset),
	)
	if err != nil && !bunrepo.IsNoRowError(err) {
		return nil, 0, auth.Unavailable("list principals", err)
	}
	if records == nil {
		records = []*auth.Principal{}
	}
	return records, total, nil
}

// ClaimActivationToken activates the principal holding token. The token is
// cleared in the same statement so it can only be claimed once.
func (r *Principals) ClaimActivationToken(ctx context.Context, token string) (*auth.Principal, error) {
	record := new(auth.Principal)
	err := r.db.NewUpdate().
		Model(record).
		Set("activation_token = NULL").
		Set("active = ?", true).
		Set("updated_at = ?", r.clock()).
		Where("activation_token = ?", token).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr("claim activation token", err)
	}
	return record, nil
}

func (r *Principals) SetPasswordResetToken(ctx context.Context, email, token string, at time.Time) (*auth.Principal, error) {
	record := new(auth.Principal)
	err := r.db.NewUpdate().
		Model(record).
		Set("password_reset_token = ?", token).
		Set("password_reset_requested_at = ?", at).
		Set("updated_at = ?", r.clock()).
		Where("email = ?", auth.NormalizeEmail(email)).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr("set password reset token", err)
	}
	return record, nil
}

func (r *Principals) FindByPasswordResetToken(ctx context.Context, token string, notBefore time.Time) (*auth.Principal, error) {
	record := new(auth.Principal)
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.password_reset_token = ?", token).
		Where("?TableAlias.password_reset_requested_at >= ?", notBefore).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr("find by password reset token", err)
	}
	return record, nil
}

// ClaimPasswordResetToken writes hash and clears the reset code in one
// conditional update. Expired or already used codes match no row.
func (r *Principals) ClaimPasswordResetToken(ctx context.Context, token, hash string, notBefore time.Time) (*auth.Principal, error) {
	record := new(auth.Principal)
	err := r.db.NewUpdate().
		Model(record).
		Set("password_hash = ?", hash).
		Set("password_reset_token = NULL").
		Set("password_reset_requested_at = NULL").
		Set("updated_at = ?", r.clock()).
		Where("password_reset_token = ?", token).
		Where("password_reset_requested_at >= ?", notBefore).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr("claim password reset token", err)
	}
	return record, nil
}

// TrackLoginAttempt resets the counter on success and bumps it on failure.
func (r *Principals) TrackLoginAttempt(ctx context.Context, principal *auth.Principal, success bool, at time.Time) error {
	q := r.db.NewUpdate().
		Model((*auth.Principal)(nil)).
		Where("id = ?", principal.ID)

	if success {
		q = q.Set("login_attempts = 0").
			Set("login_attempt_at = NULL").
			Set("loggedin_at = ?", at)
	} else {
		q = q.Set("login_attempts = login_attempts + 1").
			Set("login_attempt_at = ?", at)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return auth.Unavailable("track login attempt", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrPrincipalNotFound
	}

	if success {
		principal.LoginAttempts = 0
		principal.LoginAttemptAt = nil
		principal.LoggedInAt = &at
	} else {
		principal.LoginAttempts++
		principal.LoginAttemptAt = &at
	}
	return nil
}

func (r *Principals) prepareDefaults(record *auth.Principal) {
	record.Email = auth.NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
		if r.hashedIDs {
			if id, err := hashid.NewUUID(record.Email); err == nil {
				record.ID = id
			}
		}
	}

	if len(record.Roles) == 0 {
		record.Roles = []auth.Role{auth.RoleUser}
	}
	if record.Provider == "" {
		record.Provider = auth.ProviderLocal
	}

	now := r.clock()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now
}

func notFoundOr(op string, err error) error {
	if bunrepo.IsRecordNotFound(err) {
		return auth.ErrPrincipalNotFound
	}
	return auth.Unavailable(op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
