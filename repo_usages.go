package credentials

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InviteUsages is the append-only audit trail repository. Rows are created
// inside consume transactions and never updated afterwards.
type InviteUsages interface {
	repository.Repository[*InviteUsage]

	ListByInvite(ctx context.Context, inviteID uuid.UUID) ([]*InviteUsage, error)
}

type inviteUsages struct {
	repository.Repository[*InviteUsage]
	db *bun.DB
}

var (
	_ InviteUsages                        = (*inviteUsages)(nil)
	_ repository.Repository[*InviteUsage] = (*inviteUsages)(nil)
)

func NewInviteUsagesRepository(db *bun.DB) InviteUsages {
	repo := repository.NewRepository[*InviteUsage](db, repository.ModelHandlers[*InviteUsage]{
		NewRecord: func() *InviteUsage { return &InviteUsage{} },
		GetID: func(u *InviteUsage) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *InviteUsage, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &inviteUsages{
		Repository: repo,
		db:         db,
	}
}

// ListByInvite returns the usage rows for an invite, oldest first.
func (a *inviteUsages) ListByInvite(ctx context.Context, inviteID uuid.UUID) ([]*InviteUsage, error) {
	var records []*InviteUsage
	err := a.db.NewSelect().
		Model(&records).
		Where(`?TableAlias."invite_id" = ?`, inviteID.String()).
		Order("used_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
