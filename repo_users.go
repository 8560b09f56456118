package signup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// userMutableColumns are the only columns the workflows ever change after
// a user is registered.
var userMutableColumns = []string{
	"is_email_verified",
	"email_verified_at",
	"signup_token",
	"signup_token_expires",
	"updated_at",
}

var lookupColumns = map[LookupField]string{
	FieldUsername:    "username",
	FieldEmail:       "email",
	FieldSignupToken: "signup_token",
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now Clock
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithUsersClock overrides the clock used for updated_at timestamps
func WithUsersClock(clock Clock) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) Find(ctx context.Context, field LookupField, value string) (*User, error) {
	column, ok := lookupColumns[field]
	if !ok {
		return nil, goerrors.New("unknown user lookup field", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{
				"field": string(field),
			})
	}

	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"field": string(field),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	prepareUserDefaults(user, a.now())
	return a.Repository.Create(ctx, user)
}

func (a *users) Update(ctx context.Context, user *User) (*User, error) {
	now := a.now()
	user.UpdatedAt = &now

	res, err := a.db.NewUpdate().
		Model(user).
		Column(userMutableColumns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if !affectedRows(res) {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": user.ID.String(),
			})
	}

	return user, nil
}

// ConsumeSignupToken updates the user only while its stored token still
// equals token, so two requests racing on the same link can not both win.
func (a *users) ConsumeSignupToken(ctx context.Context, token string, next *User) (*User, error) {
	now := a.now()
	next.UpdatedAt = &now

	res, err := a.db.NewUpdate().
		Model(next).
		Column(userMutableColumns...).
		WherePK().
		Where("signup_token = ?", token).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if !affectedRows(res) {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": next.ID.String(),
			})
	}

	return next, nil
}

func affectedRows(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}
