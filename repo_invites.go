package credentials

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// consumeInviteSQL increments the usage counter only while the invite is
// active and below its limit. The guard makes concurrent consumption safe
// across processes: a losing writer matches zero rows.
var consumeInviteSQL = `UPDATE "invites" AS "inv"
SET
	"used_count" = "used_count" + 1,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"inv"."id" = ?
AND "inv"."is_active" = TRUE
AND ("inv"."max_uses" IS NULL OR "inv"."used_count" < "inv"."max_uses")
RETURNING *;`

var setInviteActiveSQL = `UPDATE "invites" AS "inv"
SET
	"is_active" = ?,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"inv"."id" = ?
RETURNING *;`

var deleteInviteSQL = `DELETE FROM "invites"
WHERE "id" = ?
RETURNING *;`

type Invites interface {
	repository.Repository[*Invite]

	GetByCode(ctx context.Context, code string, criteria ...repository.SelectCriteria) (*Invite, error)
	GetByCodeTx(ctx context.Context, tx bun.IDB, code string, criteria ...repository.SelectCriteria) (*Invite, error)
	GetByIDForUpdateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invite, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invite, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Invite, error)
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*Invite, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type invites struct {
	repository.Repository[*Invite]
	db *bun.DB
}

var (
	_ Invites                        = (*invites)(nil)
	_ repository.Repository[*Invite] = (*invites)(nil)
)

func NewInvitesRepository(db *bun.DB) Invites {
	repo := repository.NewRepository[*Invite](db, repository.ModelHandlers[*Invite]{
		NewRecord: func() *Invite { return &Invite{} },
		GetID: func(i *Invite) uuid.UUID {
			if i == nil {
				return uuid.Nil
			}
			return i.ID
		},
		SetID: func(i *Invite, id uuid.UUID) {
			if i != nil {
				i.ID = id
			}
		},
		GetIdentifier: func() string {
			return "code"
		},
	})

	return &invites{
		Repository: repo,
		db:         db,
	}
}

// GetByCode resolves a code among currently active invites. Inactive invites
// are indistinguishable from missing ones.
func (a *invites) GetByCode(ctx context.Context, code string, criteria ...repository.SelectCriteria) (*Invite, error) {
	return a.GetByCodeTx(ctx, a.db, code, criteria...)
}

func (a *invites) GetByCodeTx(ctx context.Context, tx bun.IDB, code string, criteria ...repository.SelectCriteria) (*Invite, error) {
	record := &Invite{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where(`?TableAlias."code" = ?`, code).
		Where(`?TableAlias."is_active" = TRUE`).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"code": code,
				})
		}
		return nil, err
	}

	return record, nil
}

// GetByIDForUpdateTx reads an invite inside a transaction regardless of its
// active flag, so callers can report precise validation outcomes.
func (a *invites) GetByIDForUpdateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invite, error) {
	record := &Invite{}
	err := tx.NewSelect().
		Model(record).
		Where(`?TableAlias."id" = ?`, id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *invites) ConsumeTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Invite, error) {
	res, err := a.Repository.RawTx(ctx, tx, consumeInviteSQL, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		// Guard did not match: inactive, exhausted, or gone.
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *invites) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Invite, error) {
	return a.SetActiveTx(ctx, a.db, id, active)
}

func (a *invites) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*Invite, error) {
	res, err := a.Repository.RawTx(ctx, tx, setInviteActiveSQL, active, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return res[0], nil
}

func (a *invites) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, a.db, deleteInviteSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}
