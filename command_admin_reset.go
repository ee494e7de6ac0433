package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type AdminResetPasswordMessage struct {
	Token    string `json:"token" example:"y5Fz..." doc:"Password reset token."`
	Password string `json:"password" example:"some_secret_word" doc:"New password."`
}

func (m AdminResetPasswordMessage) Type() string { return "user.password_reset.admin" }

// AdminResetPasswordHandler completes an administrator-initiated reset: the
// token alone authorizes the change, no current password is required. The
// trust difference with self-service changes is deliberate, which is why
// this is a separate operation from ChangePasswordHandler.
type AdminResetPasswordHandler struct {
	resets   *PasswordResetRegistry
	provider IdentityProvider
	activity ActivitySink
	logger   Logger
}

// NewAdminResetPasswordHandler creates a handler with sane defaults.
func NewAdminResetPasswordHandler(resets *PasswordResetRegistry, provider IdentityProvider) *AdminResetPasswordHandler {
	return &AdminResetPasswordHandler{
		resets:   resets,
		provider: provider,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *AdminResetPasswordHandler) WithActivitySink(sink ActivitySink) *AdminResetPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *AdminResetPasswordHandler) WithLogger(logger Logger) *AdminResetPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AdminResetPasswordHandler) Execute(ctx context.Context, event AdminResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AdminResetPasswordHandler) execute(ctx context.Context, event AdminResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	reset, err := h.resets.Consume(ctx, event.Token)
	if err != nil {
		return err
	}

	if err := h.provider.SetPassword(ctx, reset.UserID, event.Password); err != nil {
		// Fail safe: the token stays consumed. A fresh token is cheaper
		// than a reusable one.
		h.logger.Warn("password update failed for user %s; reset token remains consumed", reset.UserID)
		return wrapUpstreamError(err, "failed to set password on identity provider")
	}

	h.recordActivity(ctx, reset)

	return nil
}

func (h *AdminResetPasswordHandler) recordActivity(ctx context.Context, reset *PasswordReset) {
	if reset == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor: ActorRef{
			ID:   reset.UserID,
			Type: "user",
		},
		UserID: reset.UserID,
		Metadata: map[string]any{
			"password_reset_id": reset.ID.String(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
