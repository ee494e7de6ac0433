package credentials

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RedeemInviteMessage struct {
	Code       string `json:"code" example:"ABC123" doc:"Invitation code."`
	Username   string `json:"username" example:"pepe.rone" doc:"Username for the new account."`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Email for the new account."`
	Password   string `json:"password" example:"some_secret_word" doc:"Password for the new account."`
	OnResponse func(resp *RedeemInviteResponse)
}

func (m RedeemInviteMessage) Type() string { return "invite.redeem" }

type RedeemInviteResponse struct {
	Identity Identity
	Invite   *Invite
	Success  bool
}

// RedeemInviteHandler validates an invite, provisions the account on the
// external identity provider, and consumes the invite for the new account.
type RedeemInviteHandler struct {
	invites  *InviteRegistry
	provider IdentityProvider
	logger   Logger
}

// NewRedeemInviteHandler creates a handler with sane defaults.
func NewRedeemInviteHandler(invites *InviteRegistry, provider IdentityProvider) *RedeemInviteHandler {
	return &RedeemInviteHandler{
		invites:  invites,
		provider: provider,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RedeemInviteHandler) WithLogger(logger Logger) *RedeemInviteHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RedeemInviteHandler) Execute(ctx context.Context, event RedeemInviteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invite redemption",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RedeemInviteHandler) execute(ctx context.Context, event RedeemInviteMessage) error {
	resp := &RedeemInviteResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	validation, err := h.invites.Validate(ctx, event.Code)
	if err != nil {
		return err
	}

	email := event.Email
	if email == "" {
		email = validation.Email
	}

	identity, err := h.provider.CreateUser(ctx, event.Username, email, event.Password)
	if err != nil {
		return wrapUpstreamError(err, "failed to provision account on identity provider")
	}

	invite, err := h.invites.Consume(ctx, validation.InviteID, identity.ID())
	if err != nil {
		// The account exists but the invite was lost to a concurrent
		// redemption; the operator has to clean up manually.
		h.logger.Warn("account %s provisioned but invite consumption failed: %v", identity.ID(), err)
		return err
	}

	resp.Identity = identity
	resp.Invite = invite
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
