// Package auth provides the identity and access control core of the shop
// backend: signed session tokens, local and federated login reconciled into a
// single Principal keyed by email, activation gating, and a static route
// policy evaluated per request.
//
// Tokens:
//   - TokenCodec issues and verifies compact HS256 JWTs carrying sub, role,
//     iat and exp. Verification never panics and always returns one of
//     ErrTokenMalformed, ErrTokenInvalidSignature, ErrTokenExpired or the
//     decoded Claims. Tokens are stateless and cannot be revoked before exp.
//
// Principals:
//   - AccountDirectory is the storage contract. The repository package ships a
//     Bun implementation for SQLite and PostgreSQL.
//   - Authenticator runs local login, federated upsert and activation.
//     Federated identities are normalized by IdentityResolver first.
//
// Authorization:
//   - Policy is an ordered rule table of path patterns. The first matching
//     rule decides, unmatched routes require an authenticated principal. The
//     role used for the decision is the one embedded in the token.
//
// Activity sinks:
//   - ActivitySink receives login, registration, activation and password
//     reset events. Sinks run best-effort (errors are logged).
package auth
