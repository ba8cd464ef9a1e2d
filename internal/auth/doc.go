// Package auth provides token issuance and verification for the gateway.
//
// # Tokens
//
// Two subject kinds exist:
//
//   - User tokens: minted by POST /tokens/generate, scoped to a tenant
//     context, used only to create conversations.
//   - Conversation tokens: minted at conversation creation, bound 1:1 to
//     a conversation id via the "conv" claim.
//
// All tokens are HS256 JWTs with issuer "greentic.webchat" and audience
// "directline". The default lifetime is 30 minutes.
//
// # Key Resolution
//
// Signing keys are resolved per tenant scope: the "<env>:<tenant>" entry
// of the configured key map wins, falling back to the default key. A
// scope with neither fails with ErrMissingKey.
//
// # Usage
//
//	svc := auth.NewService(defaultKey, tenantKeys, 30*time.Minute)
//	token, expiresAt, err := svc.Issue(auth.SubjectUser, "user-1", scope, "", 0)
//	claims, err := svc.Verify(token, auth.SubjectUser, &scope)
//
// Verification failures map to the sentinel errors ErrInvalidToken,
// ErrExpiredToken, ErrScopeMismatch, and ErrWrongSubject.
package auth
