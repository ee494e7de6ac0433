package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InviteValidation is the read-only result of checking an invite code.
type InviteValidation struct {
	InviteID uuid.UUID
	Profile  map[string]any
	Email    string
}

// CreateInviteParams carries administrator input for a new invite.
type CreateInviteParams struct {
	ID        uuid.UUID
	Code      string
	CreatedBy string
	Profile   map[string]any
	Email     string
	MaxUses   *int
	ExpiresAt *time.Time
}

// Validate checks field level constraints before any storage work.
func (p CreateInviteParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Code, validation.Required, validation.Length(4, 64)),
		validation.Field(&p.CreatedBy, validation.Required),
		validation.Field(&p.Email, is.Email),
		validation.Field(&p.MaxUses, validation.By(minOneIfSet)),
	)
}

// minOneIfSet rejects a configured usage limit below one. The built-in
// threshold rules skip zero values, which would let a zero-use invite
// through.
func minOneIfSet(value any) error {
	v, ok := value.(*int)
	if !ok || v == nil {
		return nil
	}
	if *v < 1 {
		return errors.New("must be no less than 1")
	}
	return nil
}

// UpdateInviteParams carries administrator edits. Nil fields are left
// untouched; the usage counter is never writable through this path.
type UpdateInviteParams struct {
	Profile      map[string]any
	Email        *string
	MaxUses      *int
	ClearMaxUses bool
	ExpiresAt    *time.Time
	ClearExpiry  bool
}

// InviteRegistry owns the Invite and InviteUsage collections. All counter
// mutations go through Consume, which is serialized per invite.
type InviteRegistry struct {
	repo     RepositoryManager
	locks    *keyedMutex
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

type InviteRegistryOption func(*InviteRegistry)

func WithInviteLogger(logger Logger) InviteRegistryOption {
	return func(r *InviteRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithInviteActivitySink(sink ActivitySink) InviteRegistryOption {
	return func(r *InviteRegistry) {
		r.activity = normalizeActivitySink(sink)
	}
}

// WithInviteClock overrides the time source, mostly for expiry tests.
func WithInviteClock(now func() time.Time) InviteRegistryOption {
	return func(r *InviteRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewInviteRegistry creates a registry with sane defaults.
func NewInviteRegistry(repo RepositoryManager, opts ...InviteRegistryOption) *InviteRegistry {
	r := &InviteRegistry{
		repo:     repo,
		locks:    newKeyedMutex(),
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Create registers a new invite. The code must be unique among currently
// active invites; the check and the insert share one transaction.
func (r *InviteRegistry) Create(ctx context.Context, params CreateInviteParams) (*Invite, error) {
	if err := params.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid invite parameters")
	}

	invite := &Invite{
		ID:        params.ID,
		Code:      params.Code,
		CreatedBy: params.CreatedBy,
		Profile:   params.Profile,
		Email:     params.Email,
		MaxUses:   params.MaxUses,
		UsedCount: 0,
		IsActive:  true,
		ExpiresAt: params.ExpiresAt,
	}

	if invite.ID == uuid.Nil {
		// The code alone is not a valid seed: a deactivated invite keeps its
		// row, so recreating the same code must yield a fresh id.
		seed := fmt.Sprintf("%s:%d", params.Code, r.now().UnixNano())
		if id, err := hashid.NewUUID(seed); err == nil {
			invite.ID = id
		} else {
			invite.ID = uuid.New()
		}
	}

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := r.repo.Invites().GetByCodeTx(ctx, tx, params.Code); err == nil {
			return goerrors.New("invite code already in use", goerrors.CategoryConflict).
				WithMetadata(map[string]any{"code": params.Code})
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check invite code uniqueness")
		}

		created, err := r.repo.Invites().CreateTx(ctx, tx, invite)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create invite")
		}

		invite = created
		return nil
	})

	if err != nil {
		return nil, richOrWrapped(err, "invite creation failed")
	}

	r.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventInviteCreated,
		Actor:     ActorRef{ID: params.CreatedBy, Type: "admin"},
		Metadata:  map[string]any{"invite_id": invite.ID.String()},
	})

	return invite, nil
}

// Validate checks a code against current time and stored state without
// mutating anything; it is safe to call repeatedly for UI pre-checks.
func (r *InviteRegistry) Validate(ctx context.Context, code string) (*InviteValidation, error) {
	invite, err := r.repo.Invites().GetByCode(ctx, code)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, newNotFoundError("invite not found", map[string]any{"code": code})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up invite")
	}

	if err := r.checkInvite(invite); err != nil {
		return nil, err
	}

	return &InviteValidation{
		InviteID: invite.ID,
		Profile:  invite.Profile,
		Email:    invite.Email,
	}, nil
}

// Consume redeems an invite for userID: it re-validates, increments the
// usage counter through a guarded update, and appends the audit row, all in
// one transaction. Concurrent consumption of the same invite is serialized;
// on a maxUses=1 invite exactly one caller wins.
func (r *InviteRegistry) Consume(ctx context.Context, inviteID uuid.UUID, userID string) (*Invite, error) {
	if userID == "" {
		return nil, goerrors.New("user id must not be empty", goerrors.CategoryBadInput)
	}

	unlock := r.locks.lock(inviteID.String())
	defer unlock()

	var invite *Invite

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := r.repo.Invites().GetByIDForUpdateTx(ctx, tx, inviteID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return newNotFoundError("invite not found", map[string]any{"id": inviteID.String()})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load invite")
		}

		if !current.IsActive {
			return newNotFoundError("invite not found", map[string]any{"id": inviteID.String()})
		}
		if current.Expired(r.now()) {
			return newExpiredError("invite has expired", map[string]any{"id": inviteID.String()})
		}
		if current.Exhausted() {
			return newExhaustedError("invite has no remaining uses", map[string]any{"id": inviteID.String()})
		}

		updated, err := r.repo.Invites().ConsumeTx(ctx, tx, inviteID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// Another writer won between the read and the guarded update.
				// Re-read to tell a deactivation apart from exhaustion.
				latest, lerr := r.repo.Invites().GetByIDForUpdateTx(ctx, tx, inviteID)
				if lerr != nil || !latest.IsActive {
					return newNotFoundError("invite not found", map[string]any{"id": inviteID.String()})
				}
				return newExhaustedError("invite has no remaining uses", map[string]any{"id": inviteID.String()})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume invite")
		}

		usedAt := r.now()
		usage := &InviteUsage{
			ID:       uuid.New(),
			InviteID: inviteID,
			UserID:   userID,
			UsedAt:   &usedAt,
		}
		if _, err := r.repo.InviteUsages().CreateTx(ctx, tx, usage); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record invite usage")
		}

		invite = updated
		return nil
	})

	if err != nil {
		return nil, richOrWrapped(err, "invite consumption failed")
	}

	r.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventInviteConsumed,
		Actor:     ActorRef{ID: userID, Type: "user"},
		UserID:    userID,
		Metadata:  map[string]any{"invite_id": inviteID.String()},
	})

	return invite, nil
}

// Deactivate pauses a code without touching its usage history.
func (r *InviteRegistry) Deactivate(ctx context.Context, id uuid.UUID) (*Invite, error) {
	return r.setActive(ctx, id, false, ActivityEventInviteDeactivated)
}

// Reactivate resumes a previously deactivated code.
func (r *InviteRegistry) Reactivate(ctx context.Context, id uuid.UUID) (*Invite, error) {
	return r.setActive(ctx, id, true, ActivityEventInviteReactivated)
}

func (r *InviteRegistry) setActive(ctx context.Context, id uuid.UUID, active bool, event ActivityEventType) (*Invite, error) {
	unlock := r.locks.lock(id.String())
	defer unlock()

	invite, err := r.repo.Invites().SetActive(ctx, id, active)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, newNotFoundError("invite not found", map[string]any{"id": id.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to toggle invite")
	}

	r.recordActivity(ctx, ActivityEvent{
		EventType: event,
		Metadata:  map[string]any{"invite_id": id.String()},
	})

	return invite, nil
}

// Update applies administrator edits to profile, limits, or expiry. The
// usage counter is not writable here, and the limit can never be moved below
// the recorded usage.
func (r *InviteRegistry) Update(ctx context.Context, id uuid.UUID, params UpdateInviteParams) (*Invite, error) {
	unlock := r.locks.lock(id.String())
	defer unlock()

	var invite *Invite

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := r.repo.Invites().GetByIDForUpdateTx(ctx, tx, id)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return newNotFoundError("invite not found", map[string]any{"id": id.String()})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load invite")
		}

		if params.Profile != nil {
			current.Profile = params.Profile
		}
		if params.Email != nil {
			current.Email = *params.Email
		}
		if params.ClearMaxUses {
			current.MaxUses = nil
		} else if params.MaxUses != nil {
			if *params.MaxUses < current.UsedCount {
				return newConfigurationError("max uses cannot be lower than the recorded usage count")
			}
			current.MaxUses = params.MaxUses
		}
		if params.ClearExpiry {
			current.ExpiresAt = nil
		} else if params.ExpiresAt != nil {
			current.ExpiresAt = params.ExpiresAt
		}

		updated, err := r.repo.Invites().UpdateTx(ctx, tx, current)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update invite")
		}

		invite = updated
		return nil
	})

	if err != nil {
		return nil, richOrWrapped(err, "invite update failed")
	}

	return invite, nil
}

// Delete physically removes an invite. Usage rows are kept; the audit trail
// is append-only.
func (r *InviteRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.repo.Invites().DeleteByID(ctx, id); err != nil {
		if repository.IsRecordNotFound(err) {
			return newNotFoundError("invite not found", map[string]any{"id": id.String()})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete invite")
	}
	return nil
}

// Usages returns the audit trail for an invite, oldest first.
func (r *InviteRegistry) Usages(ctx context.Context, inviteID uuid.UUID) ([]*InviteUsage, error) {
	usages, err := r.repo.InviteUsages().ListByInvite(ctx, inviteID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list invite usages")
	}
	return usages, nil
}

func (r *InviteRegistry) checkInvite(invite *Invite) error {
	if invite.Expired(r.now()) {
		return newExpiredError("invite has expired", map[string]any{"id": invite.ID.String()})
	}
	if invite.Exhausted() {
		return newExhaustedError("invite has no remaining uses", map[string]any{"id": invite.ID.String()})
	}
	return nil
}

func (r *InviteRegistry) recordActivity(ctx context.Context, event ActivityEvent) {
	event.OccurredAt = r.now()
	if err := normalizeActivitySink(r.activity).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink error: %v", err)
	}
}

// richOrWrapped preserves rich errors raised inside transactions and wraps
// everything else.
func richOrWrapped(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
