package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes provides 256 bits of entropy and encodes to 43 characters.
	pkceVerifierBytes = 32

	// CodeChallengeMethodS256 is the only challenge method this client sends.
	CodeChallengeMethodS256 = "S256"
)

// randReader is the randomness source for verifiers. Tests swap it to
// simulate an environment without a working secure random source.
var randReader io.Reader = rand.Reader

// GenerateVerifier returns a fresh PKCE code verifier.
// The verifier is 32 random bytes, base64url-encoded without padding.
//
// There is no fallback to a weaker source: if the secure random source
// fails, the returned error wraps ErrEnvironmentUnsupported.
func GenerateVerifier() (string, error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := io.ReadFull(randReader, verifierBytes); err != nil {
		return "", fmt.Errorf("%w: reading random bytes for PKCE: %v", ErrEnvironmentUnsupported, err)
	}

	return base64.RawURLEncoding.EncodeToString(verifierBytes), nil
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// SHA256 over the verifier's UTF-8 bytes, base64url-encoded without padding.
func DeriveChallenge(verifier string) (string, error) {
	if strings.TrimSpace(verifier) == "" {
		return "", ErrVerifierMissing
	}

	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:]), nil
}

// GeneratePKCE generates a new PKCE code verifier and its S256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return nil, err
	}

	challenge, err := DeriveChallenge(verifier)
	if err != nil {
		return nil, err
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}
