// Package webhook verifies that inbound training callbacks were signed by
// the remote provider's webhook secret before any state is touched.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"portrait-ai/internal/domain"
)

// Headers carried on every provider delivery.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// Verify checks a delivery against the shared signing secret.
//
// The provider signs "{id}.{timestamp}.{body}" with HMAC-SHA256 keyed by the
// base64 payload of the secret (the part after the first '_' of
// "whsec_<base64>"), and sends one or more "v1,<base64sig>" pairs separated
// by spaces so keys can rotate. The delivery is authentic if any supplied
// signature matches; comparison is constant-time.
func Verify(secret, id, timestamp, signatureHeader string, body []byte) error {
	if id == "" || timestamp == "" || signatureHeader == "" {
		return domain.ErrBadSignature
	}

	key, err := secretBytes(secret)
	if err != nil {
		return err
	}

	signedContent := fmt.Sprintf("%s.%s.%s", id, timestamp, body)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signedContent))
	expected := mac.Sum(nil)

	for _, part := range strings.Split(signatureHeader, " ") {
		// each entry is "<version>,<base64sig>"
		_, sig, found := strings.Cut(part, ",")
		if !found {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return nil
		}
	}
	return domain.ErrBadSignature
}

func secretBytes(secret string) ([]byte, error) {
	_, payload, found := strings.Cut(secret, "_")
	if !found {
		return nil, fmt.Errorf("webhook secret missing prefix: %w", domain.ErrInvalidArgument)
	}
	key, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook secret payload not base64: %w", domain.ErrInvalidArgument)
	}
	return key, nil
}
