// Package credentials implements the credential and token lifecycle for an
// admin/self-service portal backed by an external identity system.
//
// Secret cipher:
//   - SecretCipher protects configuration secrets at rest with AES-256-GCM.
//     The key is derived once from a master secret via PBKDF2 and cached for
//     the process lifetime. Decryption fails closed: a bad auth tag is always
//     an integrity error, never partially decrypted output.
//
// Session tokens:
//   - TokenService issues and validates signed, time-bounded session tokens.
//     Tokens prove identity only; administrator status is re-derived from the
//     live IdentityProvider at check time via PrivilegeResolver so a stale
//     token never grants stale privilege.
//
// Limited-use tokens:
//   - InviteRegistry manages invitation codes with usage counters and an
//     append-only InviteUsage audit trail. Consumption is serialized per
//     invite so a maxUses=1 code can never be redeemed twice.
//   - PasswordResetRegistry manages single-use reset tokens. Once consumed a
//     token stays consumed, even if the downstream password update fails.
//
// Policy:
//   - AuthPolicyStore holds the enabled authentication methods. The
//     force-SSO exclusivity rule is enforced at the write boundary, and any
//     SSO client secret is persisted only through the SecretCipher.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the registries and
//     command handlers. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking the operation.
package credentials
