package credentials

import (
	"context"
	"time"

	"github.com/goliatone/go-credentials/sso"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// PolicyChange is a partial update to the auth policy. Nil fields are left
// untouched. SSOClientSecret is accepted in plaintext and encrypted before
// it is persisted.
type PolicyChange struct {
	PasswordAuthEnabled   *bool
	SSOEnabled            *bool
	ForceSSOOnly          *bool
	SSOProviderID         *string
	SSOIssuerURL          *string
	SSOClientID           *string
	SSOClientSecret       *string
	AuthorizationEndpoint *string
	TokenEndpoint         *string
	UserinfoEndpoint      *string
}

// DiscoveryFetcher resolves SSO endpoints from an issuer URL. Implemented by
// sso.DiscoveryClient.
type DiscoveryFetcher interface {
	Fetch(ctx context.Context, issuerURL string) (*sso.DiscoveryDocument, error)
}

// AuthPolicyStore owns the AuthPolicy record. Reads fall back to a
// password-only default when nothing has been persisted yet.
type AuthPolicyStore struct {
	repo      RepositoryManager
	cipher    *SecretCipher
	discovery DiscoveryFetcher
	activity  ActivitySink
	logger    Logger
}

// NewAuthPolicyStore creates a store with sane defaults.
func NewAuthPolicyStore(repo RepositoryManager, cipher *SecretCipher) *AuthPolicyStore {
	return &AuthPolicyStore{
		repo:     repo,
		cipher:   cipher,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithDiscovery sets the client used to resolve missing SSO endpoints.
func (s *AuthPolicyStore) WithDiscovery(d DiscoveryFetcher) *AuthPolicyStore {
	s.discovery = d
	return s
}

// WithActivitySink sets the sink used to emit policy change events.
func (s *AuthPolicyStore) WithActivitySink(sink ActivitySink) *AuthPolicyStore {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithLogger overrides the logger used by the store.
func (s *AuthPolicyStore) WithLogger(logger Logger) *AuthPolicyStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func defaultPolicy() *AuthPolicy {
	return &AuthPolicy{
		ID:                  policyRecordID,
		PasswordAuthEnabled: true,
	}
}

// Get returns the current policy, or the password-only default when no
// record exists yet.
func (s *AuthPolicyStore) Get(ctx context.Context) (*AuthPolicy, error) {
	record, err := s.repo.Policies().GetByID(ctx, policyRecordID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return defaultPolicy(), nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load auth policy")
	}
	return record, nil
}

// Update applies a partial change. The exclusivity invariant, force SSO
// implies SSO enabled, is checked against the resulting state before
// anything is written; a violation leaves the stored policy untouched.
func (s *AuthPolicyStore) Update(ctx context.Context, change PolicyChange, actor ActorRef) (*AuthPolicy, error) {
	var policy *AuthPolicy

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.repo.Policies().GetCurrentTx(ctx, tx)
		exists := true
		if err != nil {
			if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load auth policy")
			}
			current = defaultPolicy()
			exists = false
		}

		applyPolicyChange(current, change)

		if current.ForceSSOOnly && !current.SSOEnabled {
			return newConfigurationError("force SSO only requires SSO to be enabled")
		}

		if change.SSOClientSecret != nil && *change.SSOClientSecret != "" {
			if s.cipher == nil {
				return newConfigurationError("cannot store SSO client secret without a secret cipher")
			}
			sealed, err := s.cipher.Encrypt(*change.SSOClientSecret)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encrypt SSO client secret")
			}
			current.SSOClientSecret = sealed
		}

		now := time.Now()
		current.UpdatedAt = &now

		if exists {
			policy, err = s.repo.Policies().UpdateTx(ctx, tx, current)
		} else {
			policy, err = s.repo.Policies().CreateTx(ctx, tx, current)
		}
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store auth policy")
		}

		return nil
	})

	if err != nil {
		return nil, richOrWrapped(err, "auth policy update failed")
	}

	if err := normalizeActivitySink(s.activity).Record(ctx, ActivityEvent{
		EventType:  ActivityEventPolicyUpdated,
		Actor:      actor,
		OccurredAt: time.Now(),
	}); err != nil {
		s.logger.Warn("activity sink error during policy update: %v", err)
	}

	return policy, nil
}

// ClientSecret decrypts the stored SSO client secret. Empty when none is
// configured.
func (s *AuthPolicyStore) ClientSecret(policy *AuthPolicy) (string, error) {
	if policy == nil || policy.SSOClientSecret == "" {
		return "", nil
	}
	if s.cipher == nil {
		return "", newConfigurationError("cannot read SSO client secret without a secret cipher")
	}
	return s.cipher.Decrypt(policy.SSOClientSecret)
}

// ResolveEndpoints fills in missing SSO endpoints from the issuer's
// discovery document and persists the result. Explicitly configured
// endpoints always win over discovered ones.
func (s *AuthPolicyStore) ResolveEndpoints(ctx context.Context, policy *AuthPolicy) (*AuthPolicy, error) {
	if policy == nil {
		return nil, goerrors.New("policy must not be nil", goerrors.CategoryBadInput)
	}
	if policy.SSOAuthorizationEndpoint != "" && policy.SSOTokenEndpoint != "" && policy.SSOUserinfoEndpoint != "" {
		return policy, nil
	}
	if s.discovery == nil {
		return nil, newConfigurationError("no discovery client configured and SSO endpoints are incomplete")
	}
	if policy.SSOIssuerURL == "" {
		return nil, newConfigurationError("cannot discover SSO endpoints without an issuer URL")
	}

	doc, err := s.discovery.Fetch(ctx, policy.SSOIssuerURL)
	if err != nil {
		return nil, wrapUpstreamError(err, "SSO discovery failed")
	}

	change := PolicyChange{}
	if policy.SSOAuthorizationEndpoint == "" {
		change.AuthorizationEndpoint = &doc.AuthorizationEndpoint
	}
	if policy.SSOTokenEndpoint == "" {
		change.TokenEndpoint = &doc.TokenEndpoint
	}
	if policy.SSOUserinfoEndpoint == "" {
		change.UserinfoEndpoint = &doc.UserinfoEndpoint
	}

	return s.Update(ctx, change, ActorRef{ID: "system", Type: "system"})
}

func applyPolicyChange(policy *AuthPolicy, change PolicyChange) {
	if change.PasswordAuthEnabled != nil {
		policy.PasswordAuthEnabled = *change.PasswordAuthEnabled
	}
	if change.SSOEnabled != nil {
		policy.SSOEnabled = *change.SSOEnabled
	}
	if change.ForceSSOOnly != nil {
		policy.ForceSSOOnly = *change.ForceSSOOnly
	}
	if change.SSOProviderID != nil {
		policy.SSOProviderID = *change.SSOProviderID
	}
	if change.SSOIssuerURL != nil {
		policy.SSOIssuerURL = *change.SSOIssuerURL
	}
	if change.SSOClientID != nil {
		policy.SSOClientID = *change.SSOClientID
	}
	if change.AuthorizationEndpoint != nil {
		policy.SSOAuthorizationEndpoint = *change.AuthorizationEndpoint
	}
	if change.TokenEndpoint != nil {
		policy.SSOTokenEndpoint = *change.TokenEndpoint
	}
	if change.UserinfoEndpoint != nil {
		policy.SSOUserinfoEndpoint = *change.UserinfoEndpoint
	}
}
