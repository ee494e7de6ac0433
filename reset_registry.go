package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const resetTokenBytes = 32

// PasswordResetRegistry owns the PasswordReset collection. Tokens are
// unguessable random strings, valid for one use within their TTL.
type PasswordResetRegistry struct {
	repo       RepositoryManager
	defaultTTL time.Duration
	activity   ActivitySink
	logger     Logger
	now        func() time.Time
}

type ResetRegistryOption func(*PasswordResetRegistry)

func WithResetLogger(logger Logger) ResetRegistryOption {
	return func(r *PasswordResetRegistry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithResetActivitySink(sink ActivitySink) ResetRegistryOption {
	return func(r *PasswordResetRegistry) {
		r.activity = normalizeActivitySink(sink)
	}
}

func WithResetClock(now func() time.Time) ResetRegistryOption {
	return func(r *PasswordResetRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithResetDefaultTTL overrides the TTL used when Create receives zero.
func WithResetDefaultTTL(ttl time.Duration) ResetRegistryOption {
	return func(r *PasswordResetRegistry) {
		if ttl > 0 {
			r.defaultTTL = ttl
		}
	}
}

// NewPasswordResetRegistry creates a registry with a 24h default TTL.
func NewPasswordResetRegistry(repo RepositoryManager, opts ...ResetRegistryOption) *PasswordResetRegistry {
	r := &PasswordResetRegistry{
		repo:       repo,
		defaultTTL: 24 * time.Hour,
		activity:   noopActivitySink{},
		logger:     defLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// NewPasswordResetRegistryFromConfig builds a registry with the default TTL
// taken from the shared Config surface.
func NewPasswordResetRegistryFromConfig(repo RepositoryManager, cfg Config, opts ...ResetRegistryOption) (*PasswordResetRegistry, error) {
	if cfg == nil {
		return nil, newConfigurationError("config must not be nil")
	}
	opts = append([]ResetRegistryOption{
		WithResetDefaultTTL(time.Duration(cfg.GetResetTTLHours()) * time.Hour),
	}, opts...)
	return NewPasswordResetRegistry(repo, opts...), nil
}

// Create mints a reset token for userID on behalf of createdBy. A zero ttl
// selects the configured default.
func (r *PasswordResetRegistry) Create(ctx context.Context, userID, createdBy string, ttl time.Duration) (*PasswordReset, error) {
	if userID == "" {
		return nil, goerrors.New("user id must not be empty", goerrors.CategoryBadInput)
	}
	if createdBy == "" {
		return nil, goerrors.New("created by must not be empty", goerrors.CategoryBadInput)
	}
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	token, err := generateResetToken()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	record := &PasswordReset{
		ID:        uuid.New(),
		Token:     token,
		UserID:    userID,
		CreatedBy: createdBy,
		Used:      false,
		ExpiresAt: r.now().Add(ttl),
	}

	created, err := r.repo.PasswordResets().Create(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
	}

	r.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventResetCreated,
		Actor:     ActorRef{ID: createdBy, Type: "admin"},
		UserID:    userID,
		Metadata:  map[string]any{"reset_id": created.ID.String()},
	})

	return created, nil
}

// Validate checks a token without consuming it. A consumed token reports
// already-used even when it is also expired: consumption is permanent and
// outranks expiry.
func (r *PasswordResetRegistry) Validate(ctx context.Context, token string) (*PasswordReset, error) {
	record, err := r.repo.PasswordResets().GetByToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, newNotFoundError("reset token not found", nil)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
	}

	if err := r.checkReset(record); err != nil {
		return nil, err
	}

	return record, nil
}

// Consume validates and marks the token used as one indivisible operation.
// Of two concurrent consumers exactly one succeeds; the other observes
// already-used.
func (r *PasswordResetRegistry) Consume(ctx context.Context, token string) (*PasswordReset, error) {
	var record *PasswordReset

	err := r.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := r.repo.PasswordResets().GetByTokenTx(ctx, tx, token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return newNotFoundError("reset token not found", nil)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
		}

		if err := r.checkReset(current); err != nil {
			return err
		}

		used, err := r.repo.PasswordResets().MarkUsedTx(ctx, tx, token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// Guard matched zero rows: a concurrent consumer won.
				return newAlreadyUsedError("reset token has already been used", nil)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark reset token used")
		}

		record = used
		return nil
	})

	if err != nil {
		return nil, richOrWrapped(err, "reset token consumption failed")
	}

	r.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventResetConsumed,
		UserID:    record.UserID,
		Metadata:  map[string]any{"reset_id": record.ID.String()},
	})

	return record, nil
}

func (r *PasswordResetRegistry) checkReset(record *PasswordReset) error {
	if record.Used {
		return newAlreadyUsedError("reset token has already been used", nil)
	}
	if record.Expired(r.now()) {
		return newExpiredError("reset token has expired", nil)
	}
	return nil
}

func (r *PasswordResetRegistry) recordActivity(ctx context.Context, event ActivityEvent) {
	event.OccurredAt = r.now()
	if err := normalizeActivitySink(r.activity).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink error: %v", err)
	}
}

// generateResetToken returns a URL-safe token with 256 bits of entropy.
func generateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
