package auth

import (
	"encoding/json"
	"testing"

	"github.com/marmos91/statebroker/pkg/broker"
)

func signedFrame(t *testing.T, a *Authenticator, action string) []byte {
	t.Helper()
	base, err := json.Marshal(map[string]string{"action": action})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	tag := a.Sign(base)

	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m["hmac"] = tag
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal with hmac: %v", err)
	}
	return out
}

func TestVerifyAcceptsCorrectlySignedFrame(t *testing.T) {
	a := New("s3cr3t")
	frame := signedFrame(t, a, "ping")
	if err := a.Verify(frame); err != nil {
		t.Fatalf("verify = %v, want nil", err)
	}
}

func TestVerifyRejectsTamperedHMAC(t *testing.T) {
	a := New("s3cr3t")
	frame := signedFrame(t, a, "ping")

	// flip a hex digit inside the hmac field's value
	idx := -1
	for i := len(frame) - 2; i >= 0; i-- {
		if frame[i] >= '0' && frame[i] <= '9' {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.Fatalf("could not find a digit to flip")
	}
	tampered := append([]byte(nil), frame...)
	if tampered[idx] == '9' {
		tampered[idx] = '0'
	} else {
		tampered[idx]++
	}

	if err := a.Verify(tampered); err != broker.ErrAuthFailed {
		t.Fatalf("verify tampered = %v, want auth_failed", err)
	}
}

func TestVerifyRejectsInvalidHex(t *testing.T) {
	a := New("s3cr3t")
	frame := []byte(`{"action":"ping","hmac":"zz"}`)
	if err := a.Verify(frame); err != broker.ErrAuthFailed {
		t.Fatalf("verify invalid hex = %v, want auth_failed", err)
	}
}

func TestVerifyRejectsMissingHMAC(t *testing.T) {
	a := New("s3cr3t")
	frame := []byte(`{"action":"ping"}`)
	if err := a.Verify(frame); err != broker.ErrAuthFailed {
		t.Fatalf("verify missing hmac = %v, want auth_failed", err)
	}
}

func TestVerifyRejectsNonStringHMAC(t *testing.T) {
	a := New("s3cr3t")
	frame := []byte(`{"action":"ping","hmac":12345}`)
	if err := a.Verify(frame); err != broker.ErrAuthFailed {
		t.Fatalf("verify non-string hmac = %v, want auth_failed", err)
	}
}

func TestStripHMACFieldLeavesValidJSON(t *testing.T) {
	raw := []byte(`{"action":"ping","hmac":"abc123","key":"k"}`)
	stripped := StripHMACField(raw)

	var m map[string]any
	if err := json.Unmarshal(stripped, &m); err != nil {
		t.Fatalf("stripped payload is not valid JSON: %v (%s)", err, stripped)
	}
	if _, ok := m["hmac"]; ok {
		t.Fatalf("hmac field still present after strip")
	}
	if m["action"] != "ping" || m["key"] != "k" {
		t.Fatalf("strip corrupted remaining fields: %v", m)
	}
}

func TestDisabledWhenNoSecret(t *testing.T) {
	a := New("")
	if a.Enabled() {
		t.Fatalf("expected Enabled() false with empty secret")
	}
}
