//go:build !integration

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"portrait-ai/internal/domain"
)

const testSecret = "whsec_dGVzdC1zZWNyZXQ=" // payload decodes to "test-secret"

func sign(t *testing.T, key, id, timestamp string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(id + "." + timestamp + "." + string(body)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	id := "msg_2abc"
	ts := "1725100000"
	body := []byte(`{"status":"succeeded","metrics":{"total_time":1234.5}}`)

	t.Run("should accept a correctly signed delivery", func(t *testing.T) {
		sig := sign(t, "test-secret", id, ts, body)
		if err := Verify(testSecret, id, ts, "v1,"+sig, body); err != nil {
			t.Fatalf("expected acceptance, got %v", err)
		}
	})

	t.Run("should accept when any of several rotated signatures matches", func(t *testing.T) {
		good := sign(t, "test-secret", id, ts, body)
		header := "v1,Zm9yZ2VkZm9yZ2VkZm9yZ2VkZm9yZ2VkZm9yZ2VkZm8= v1," + good
		if err := Verify(testSecret, id, ts, header, body); err != nil {
			t.Fatalf("expected acceptance with rotated keys, got %v", err)
		}
	})

	t.Run("should reject any mutation of the signed content", func(t *testing.T) {
		sig := sign(t, "test-secret", id, ts, body)

		cases := map[string]struct {
			id, ts string
			body   []byte
		}{
			"mutated id":        {"msg_2abd", ts, body},
			"mutated timestamp": {id, "1725100001", body},
			"mutated body":      {id, ts, []byte(`{"status":"succeeded","metrics":{"total_time":1234.6}}`)},
		}
		for name, c := range cases {
			if err := Verify(testSecret, c.id, c.ts, "v1,"+sig, c.body); !errors.Is(err, domain.ErrBadSignature) {
				t.Errorf("%s: expected ErrBadSignature, got %v", name, err)
			}
		}
	})

	t.Run("should reject a signature made with the wrong key", func(t *testing.T) {
		sig := sign(t, "other-secret", id, ts, body)
		if err := Verify(testSecret, id, ts, "v1,"+sig, body); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("should reject missing headers", func(t *testing.T) {
		sig := sign(t, "test-secret", id, ts, body)
		if err := Verify(testSecret, "", ts, "v1,"+sig, body); !errors.Is(err, domain.ErrBadSignature) {
			t.Errorf("empty id: expected ErrBadSignature, got %v", err)
		}
		if err := Verify(testSecret, id, ts, "", body); !errors.Is(err, domain.ErrBadSignature) {
			t.Errorf("empty signature header: expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("should reject garbage signature entries without panicking", func(t *testing.T) {
		if err := Verify(testSecret, id, ts, "v1 not-base64!!! v1,", body); !errors.Is(err, domain.ErrBadSignature) {
			t.Fatalf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("should reject a malformed secret", func(t *testing.T) {
		sig := sign(t, "test-secret", id, ts, body)
		if err := Verify("no-underscore-prefix", id, ts, "v1,"+sig, body); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("missing prefix: expected ErrInvalidArgument, got %v", err)
		}
		if err := Verify("whsec_!!notbase64!!", id, ts, "v1,"+sig, body); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("bad payload: expected ErrInvalidArgument, got %v", err)
		}
	})
}
