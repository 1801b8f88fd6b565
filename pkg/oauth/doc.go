// Package oauth implements the protocol side of the chapterbase login:
// PKCE generation (RFC 7636), the authorization URL and the
// authorization-code-for-token exchange against an OpenID Connect provider.
//
// # Core Components
//
//   - GenerateVerifier / DeriveChallenge: S256 PKCE pair
//   - BuildAuthorizationURL: authorization endpoint URL with the challenge
//   - Client.ExchangeCode: single POST to the token endpoint
//   - TokenPair: id token + access token of a session
//   - Error taxonomy: ErrEnvironmentUnsupported, ErrVerifierMissing,
//     ErrTokenResponseIncomplete, ErrTokenExchangeFailed, ErrAuthorizationFailure
//
// # Usage
//
//	pkce, err := oauth.GeneratePKCE()
//	authURL, err := oauth.BuildAuthorizationURL(endpoints, pkce.CodeChallenge)
//
//	// ... browser returns with ?code=...
//	pair, err := oauth.NewClient().ExchangeCode(ctx, endpoints, code, pkce.CodeVerifier)
//
// Nothing in this package stores state; persistence of the verifier and the
// token pair belongs to internal/session.
package oauth
