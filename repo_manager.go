package credentials

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Invites() Invites
	InviteUsages() InviteUsages
	PasswordResets() PasswordResets
	Policies() AuthPolicies
}

// AuthPolicies is the singleton policy repository. GetCurrentTx reads through
// the caller's transaction so check-then-write updates stay atomic and never
// reach for a second pool connection.
type AuthPolicies interface {
	repository.Repository[*AuthPolicy]

	GetCurrentTx(ctx context.Context, tx bun.IDB) (*AuthPolicy, error)
}

type authPolicies struct {
	repository.Repository[*AuthPolicy]
	db *bun.DB
}

var (
	_ AuthPolicies                        = (*authPolicies)(nil)
	_ repository.Repository[*AuthPolicy] = (*authPolicies)(nil)
)

func NewPoliciesRepository(db *bun.DB) AuthPolicies {
	handlers := repository.ModelHandlers[*AuthPolicy]{
		NewRecord: func() *AuthPolicy {
			return &AuthPolicy{}
		},
		GetID: func(record *AuthPolicy) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *AuthPolicy, id uuid.UUID) {
			record.ID = id
		},
	}
	return &authPolicies{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (a *authPolicies) GetCurrentTx(ctx context.Context, tx bun.IDB) (*AuthPolicy, error) {
	record := &AuthPolicy{}
	err := tx.NewSelect().
		Model(record).
		Where(`?TableAlias."id" = ?`, policyRecordID.String()).
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

type mngr struct {
	db             *bun.DB
	invites        Invites
	inviteUsages   InviteUsages
	passwordResets PasswordResets
	policies       AuthPolicies
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		invites:        NewInvitesRepository(db),
		inviteUsages:   NewInviteUsagesRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
		policies:       NewPoliciesRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.invites == nil {
		return errors.New("repository invites should be initialized")
	}

	if m.inviteUsages == nil {
		return errors.New("repository inviteUsages should be initialized")
	}

	if m.passwordResets == nil {
		return errors.New("repository passwordResets should be initialized")
	}

	if m.policies == nil {
		return errors.New("repository policies should be initialized")
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

func (m mngr) Invites() Invites {
	return m.invites
}

func (m mngr) InviteUsages() InviteUsages {
	return m.inviteUsages
}

func (m mngr) PasswordResets() PasswordResets {
	return m.passwordResets
}

func (m mngr) Policies() AuthPolicies {
	return m.policies
}
