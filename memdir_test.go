package auth_test

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-shop-auth"
	"github.com/google/uuid"
)

// memDirectory is a map backed AccountDirectory for flow tests.
type memDirectory struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*auth.Principal
	creates int
	saves   int
}

func newMemDirectory(seed ...*auth.Principal) *memDirectory {
	d := &memDirectory{byID: map[uuid.UUID]*auth.Principal{}}
	for _, p := range seed {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		cp := *p
		d.byID[p.ID] = &cp
	}
	return d
}

func (d *memDirectory) copyOf(p *auth.Principal) *auth.Principal {
	cp := *p
	cp.Roles = append([]auth.Role(nil), p.Roles...)
	return &cp
}

func (d *memDirectory) find(match func(*auth.Principal) bool) *auth.Principal {
	for _, p := range d.byID {
		if match(p) {
			return p
		}
	}
	return nil
}

func (d *memDirectory) FindByEmail(_ context.Context, email string) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email = auth.NormalizeEmail(email)
	if p := d.find(func(p *auth.Principal) bool { return p.Email == email }); p != nil {
		return d.copyOf(p), nil
	}
	return nil, auth.ErrPrincipalNotFound
}

func (d *memDirectory) FindByID(_ context.Context, id string) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrPrincipalNotFound
	}
	if p, ok := d.byID[uid]; ok {
		return d.copyOf(p), nil
	}
	return nil, auth.ErrPrincipalNotFound
}

func (d *memDirectory) Create(_ context.Context, p *auth.Principal) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p.Email = auth.NormalizeEmail(p.Email)
	if d.find(func(e *auth.Principal) bool { return e.Email == p.Email }) != nil {
		return nil, auth.ErrDuplicateEmail
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	d.creates++
	d.byID[p.ID] = d.copyOf(p)
	return d.copyOf(p), nil
}

func (d *memDirectory) Save(_ context.Context, p *auth.Principal, columns ...string) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.byID[p.ID]
	if !ok {
		return nil, auth.ErrPrincipalNotFound
	}
	d.saves++
	if len(columns) == 0 {
		d.byID[p.ID] = d.copyOf(p)
		return d.copyOf(p), nil
	}
	for _, col := range columns {
		switch col {
		case auth.ColumnProvider:
			stored.Provider = p.Provider
		case auth.ColumnPasswordHash:
			stored.PasswordHash = p.PasswordHash
		case "first_name":
			stored.FirstName = p.FirstName
		case "last_name":
			stored.LastName = p.LastName
		case "city":
			stored.City = p.City
		case "address":
			stored.Address = p.Address
		case "phone_number":
			stored.PhoneNumber = p.PhoneNumber
		case "post_index":
			stored.PostIndex = p.PostIndex
		}
	}
	return d.copyOf(stored), nil
}

func (d *memDirectory) List(_ context.Context, limit, offset int) ([]*auth.Principal, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*auth.Principal, 0, len(d.byID))
	for _, p := range d.byID {
		out = append(out, d.copyOf(p))
	}
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (d *memDirectory) ClaimActivationToken(_ context.Context, token string) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.find(func(p *auth.Principal) bool { return p.ActivationToken != nil && *p.ActivationToken == token })
	if p == nil {
		return nil, auth.ErrPrincipalNotFound
	}
	p.MarkActivated()
	return d.copyOf(p), nil
}

func (d *memDirectory) SetPasswordResetToken(_ context.Context, email, token string, at time.Time) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email = auth.NormalizeEmail(email)
	p := d.find(func(p *auth.Principal) bool { return p.Email == email })
	if p == nil {
		return nil, auth.ErrPrincipalNotFound
	}
	p.PasswordResetToken = &token
	p.PasswordResetRequestedAt = &at
	return d.copyOf(p), nil
}

func (d *memDirectory) liveReset(token string, notBefore time.Time) *auth.Principal {
	return d.find(func(p *auth.Principal) bool {
		return p.PasswordResetToken != nil && *p.PasswordResetToken == token &&
			p.PasswordResetRequestedAt != nil && !p.PasswordResetRequestedAt.Before(notBefore)
	})
}

func (d *memDirectory) FindByPasswordResetToken(_ context.Context, token string, notBefore time.Time) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p := d.liveReset(token, notBefore); p != nil {
		return d.copyOf(p), nil
	}
	return nil, auth.ErrPrincipalNotFound
}

func (d *memDirectory) ClaimPasswordResetToken(_ context.Context, token, hash string, notBefore time.Time) (*auth.Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.liveReset(token, notBefore)
	if p == nil {
		return nil, auth.ErrPrincipalNotFound
	}
	p.SetPasswordHash(hash)
	p.ClearPasswordReset()
	return d.copyOf(p), nil
}

func (d *memDirectory) TrackLoginAttempt(_ context.Context, principal *auth.Principal, success bool, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.byID[principal.ID]
	if !ok {
		return auth.ErrPrincipalNotFound
	}
	if success {
		p.LoginAttempts = 0
		p.LoggedInAt = &at
		return nil
	}
	p.LoginAttempts++
	p.LoginAttemptAt = &at
	return nil
}

var _ auth.AccountDirectory = (*memDirectory)(nil)
