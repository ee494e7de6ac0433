package credentials

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Invite is an invitation code that grants account creation on the backing
// identity system. Codes are unique among active invites; usage history is
// kept in InviteUsage and survives deactivation.
type Invite struct {
	bun.BaseModel `bun:"table:invites,alias:inv"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Code          string         `bun:"code,notnull" json:"code,omitempty"`
	CreatedBy     string         `bun:"created_by,notnull" json:"created_by,omitempty"`
	Profile       map[string]any `bun:"profile,type:jsonb" json:"profile,omitempty"`
	Email         string         `bun:"email" json:"email,omitempty"`
	MaxUses       *int           `bun:"max_uses" json:"max_uses,omitempty"`
	UsedCount     int            `bun:"used_count,notnull,default:0" json:"used_count"`
	IsActive      bool           `bun:"is_active,notnull" json:"is_active"`
	ExpiresAt     *time.Time     `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Exhausted reports whether the invite has reached its usage limit. Invites
// without MaxUses never exhaust.
func (i *Invite) Exhausted() bool {
	return i.MaxUses != nil && i.UsedCount >= *i.MaxUses
}

// Expired reports whether the invite is past its expiry at the given time.
// Invites without ExpiresAt never expire.
func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// InviteUsage is the append-only audit trail of invite consumption: exactly
// one row per successful redemption, never updated in place.
type InviteUsage struct {
	bun.BaseModel `bun:"table:invite_usages,alias:invu"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	InviteID      uuid.UUID  `bun:"invite_id,notnull,type:uuid" json:"invite_id,omitempty"`
	UserID        string     `bun:"user_id,notnull" json:"user_id,omitempty"`
	UsedAt        *time.Time `bun:"used_at,nullzero,default:current_timestamp" json:"used_at,omitempty"`
}

// PasswordReset is a single-use, time-bounded reset token. Once Used flips
// to true the token can never authorize a reset again, expired or not.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	UserID        string     `bun:"user_id,notnull" json:"user_id,omitempty"`
	CreatedBy     string     `bun:"created_by,notnull" json:"created_by,omitempty"`
	Used          bool       `bun:"used,notnull" json:"used"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the token is past its expiry at the given time.
func (r *PasswordReset) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AuthPolicy holds the enabled authentication methods. A single record is
// persisted under policyRecordID. The client secret column only ever holds
// SecretCipher output.
type AuthPolicy struct {
	bun.BaseModel            `bun:"table:auth_policy,alias:pol"`
	ID                       uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PasswordAuthEnabled      bool       `bun:"password_auth_enabled,notnull" json:"password_auth_enabled"`
	SSOEnabled               bool       `bun:"sso_enabled,notnull" json:"sso_enabled"`
	ForceSSOOnly             bool       `bun:"force_sso_only,notnull" json:"force_sso_only"`
	SSOProviderID            string     `bun:"sso_provider_id" json:"sso_provider_id,omitempty"`
	SSOIssuerURL             string     `bun:"sso_issuer_url" json:"sso_issuer_url,omitempty"`
	SSOClientID              string     `bun:"sso_client_id" json:"sso_client_id,omitempty"`
	SSOClientSecret          string     `bun:"sso_client_secret" json:"-"`
	SSOAuthorizationEndpoint string     `bun:"sso_authorization_endpoint" json:"sso_authorization_endpoint,omitempty"`
	SSOTokenEndpoint         string     `bun:"sso_token_endpoint" json:"sso_token_endpoint,omitempty"`
	SSOUserinfoEndpoint      string     `bun:"sso_userinfo_endpoint" json:"sso_userinfo_endpoint,omitempty"`
	UpdatedAt                *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// policyRecordID keys the singleton policy row.
var policyRecordID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
