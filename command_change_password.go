package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ChangePasswordMessage struct {
	Username        string `json:"username" example:"pepe.rone" doc:"Account username."`
	CurrentPassword string `json:"current_password" example:"old_secret_word" doc:"Current password."`
	NewPassword     string `json:"new_password" example:"new_secret_word" doc:"New password."`
}

func (m ChangePasswordMessage) Type() string { return "user.password_change" }

// ChangePasswordHandler completes a self-service password change. Unlike the
// admin-initiated reset, the caller must prove knowledge of the current
// password before anything changes.
type ChangePasswordHandler struct {
	provider IdentityProvider
	activity ActivitySink
	logger   Logger
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(provider IdentityProvider) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		provider: provider,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	identity, err := h.provider.Authenticate(ctx, event.Username, event.CurrentPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "current password verification failed")
	}

	if err := h.provider.SetPassword(ctx, identity.ID(), event.NewPassword); err != nil {
		return wrapUpstreamError(err, "failed to set password on identity provider")
	}

	h.recordActivity(ctx, identity)

	return nil
}

func (h *ChangePasswordHandler) recordActivity(ctx context.Context, identity Identity) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor: ActorRef{
			ID:   identity.ID(),
			Type: "user",
		},
		UserID:     identity.ID(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password change: %v", err)
	}
}
