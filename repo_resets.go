package credentials

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// markResetUsedSQL flips the used flag exactly once. The used = FALSE guard
// is what makes validate-then-use indivisible: the second of two racing
// consumers matches zero rows.
var markResetUsedSQL = `UPDATE "password_resets" AS "pwdr"
SET
	"used" = TRUE,
	"used_at" = CURRENT_TIMESTAMP
WHERE
	"pwdr"."token" = ?
AND "pwdr"."used" = FALSE
RETURNING *;`

type PasswordResets interface {
	repository.Repository[*PasswordReset]

	GetByToken(ctx context.Context, token string, criteria ...repository.SelectCriteria) (*PasswordReset, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string, criteria ...repository.SelectCriteria) (*PasswordReset, error)
	MarkUsedTx(ctx context.Context, tx bun.IDB, token string) (*PasswordReset, error)
}

type passwordResets struct {
	repository.Repository[*PasswordReset]
	db *bun.DB
}

var (
	_ PasswordResets                        = (*passwordResets)(nil)
	_ repository.Repository[*PasswordReset] = (*passwordResets)(nil)
)

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	repo := repository.NewRepository[*PasswordReset](db, repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset { return &PasswordReset{} },
		GetID: func(r *PasswordReset) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *PasswordReset, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &passwordResets{
		Repository: repo,
		db:         db,
	}
}

func (a *passwordResets) GetByToken(ctx context.Context, token string, criteria ...repository.SelectCriteria) (*PasswordReset, error) {
	return a.GetByTokenTx(ctx, a.db, token, criteria...)
}

func (a *passwordResets) GetByTokenTx(ctx context.Context, tx bun.IDB, token string, criteria ...repository.SelectCriteria) (*PasswordReset, error) {
	record := &PasswordReset{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where(`?TableAlias."token" = ?`, token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *passwordResets) MarkUsedTx(ctx context.Context, tx bun.IDB, token string) (*PasswordReset, error) {
	res, err := a.Repository.RawTx(ctx, tx, markResetUsedSQL, token)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}
