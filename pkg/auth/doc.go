// Package auth verifies identity tokens presented at the HTTP API and at
// the realtime gateway handshake.
//
// # Overview
//
// Astricord does not issue credentials; an external identity service does.
// This package only extracts the identity claim from an HMAC-signed JWT.
// Verification failure is never fatal to a connection: callers treat a nil
// identity as anonymous and continue.
//
//	verifier, _ := auth.NewVerifier([]byte(secret), 4096)
//	ident, err := verifier.Verify(token)
//	if err != nil {
//		// proceed as anonymous
//	}
//
// # Caching
//
// Signature verification is cached in a bounded LRU keyed by the raw token
// string, honoring each token's expiry. Only the verification result is
// cached — never a permission decision.
package auth
