package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fixedSigner(t *testing.T, secret string, leeway time.Duration, now time.Time) *Signer {
	t.Helper()
	signer, err := NewSigner(secret, leeway)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	signer.WithClock(func() time.Time { return now })
	return signer
}

func TestIssueAndVerifyPilotPass(t *testing.T) {
	now := time.Unix(1700000000, 0)
	signer := fixedSigner(t, "secret", time.Second, now)

	token, err := signer.Issue("Viper 1", ScopePilot, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	pass, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if pass.Ship != "Viper 1" || pass.Scope != ScopePilot || !pass.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected pass %+v", pass)
	}
	if !pass.Allows("viper 1") || pass.Allows("Viper 2") {
		t.Fatalf("expected a pilot pass to cover only its own ship")
	}
}

func TestObserverPassAllowsEveryShip(t *testing.T) {
	signer := fixedSigner(t, "secret", 0, time.Unix(1700000000, 0))
	token, err := signer.Issue("", ScopeObserver, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	pass, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !pass.Allows("Bandit 4") {
		t.Fatalf("expected an observer pass to cover any ship")
	}
	if _, err := signer.Issue("", ScopePilot, time.Minute); !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected a pilot pass without a ship to be refused, got %v", err)
	}
}

func TestVerifyRejectsExpiredPass(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer := fixedSigner(t, "secret", 0, now.Add(-2*time.Minute))
	token, err := issuer.Issue("Viper 1", ScopePilot, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	verifier := fixedSigner(t, "secret", 0, now)
	if _, err := verifier.Verify(token); !errors.Is(err, ErrExpiredPass) {
		t.Fatalf("expected ErrExpiredPass, got %v", err)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	token, err := fixedSigner(t, "other-secret", 0, now).Issue("Viper 1", ScopePilot, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := fixedSigner(t, "secret", 0, now).Verify(token); !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass, got %v", err)
	}
}

func TestVerifyRejectsUnknownScope(t *testing.T) {
	now := time.Unix(1700000000, 0)
	token := handToken(t, "secret", `{"sub":"Viper 1","scope":"admiral","exp":%d}`, now.Add(time.Minute))
	if _, err := fixedSigner(t, "secret", 0, now).Verify(token); !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass for an unknown scope, got %v", err)
	}
}

func TestVerifyRejectsNonHS256(t *testing.T) {
	now := time.Unix(1700000000, 0)
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":"Viper 1","scope":"pilot","exp":%d}`, now.Add(time.Minute).Unix())))
	if _, err := fixedSigner(t, "secret", 0, now).Verify(head + "." + body + "."); !errors.Is(err, ErrInvalidPass) {
		t.Fatalf("expected ErrInvalidPass, got %v", err)
	}
}

func handToken(t *testing.T, secret, payloadFormat string, expires time.Time) string {
	t.Helper()
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(payloadFormat, expires.Unix())))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(head + "." + body))
	return head + "." + body + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
