// Package signer produces the request signatures the fulfilment partner API
// validates. Every outbound call carries an API key header plus an
// HMAC-SHA256 signature over a canonical payload: the serialized JSON body
// for body-signed endpoints, the literal query string for query-signed list
// endpoints. The pairing of endpoint and canonicalization mode is fixed by
// the partner; getting it wrong produces a signature the partner rejects.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrMissingSecret is returned when signing is attempted without a secret
// key. Signing with an empty key would produce signatures the partner
// accepts in no environment, so this fails loudly instead.
var ErrMissingSecret = errors.New("signer: secret key is required")

// Sign computes the base64-encoded HMAC-SHA256 signature of canonicalPayload.
func Sign(secret []byte, canonicalPayload string) (string, error) {
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(canonicalPayload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time. Used by
// tests and by any future inbound-webhook validation.
func Verify(secret []byte, canonicalPayload, signature string) bool {
	expected, err := Sign(secret, canonicalPayload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
