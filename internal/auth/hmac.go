package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidPass indicates the pass failed signature checks or had malformed structure.
	ErrInvalidPass = errors.New("invalid hud pass")
	// ErrExpiredPass signals that the pass expiry is in the past.
	ErrExpiredPass = errors.New("hud pass expired")
)

// Scope limits which ships a HUD pass may watch.
type Scope string

const (
	// ScopePilot restricts the feed to the ship named in the pass.
	ScopePilot Scope = "pilot"
	// ScopeObserver opens the feed for every ship in the active region.
	ScopeObserver Scope = "observer"
)

// Pass is the verified content of a HUD token.
type Pass struct {
	Ship      string
	Scope     Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Allows reports whether the pass may observe the named ship.
func (p *Pass) Allows(ship string) bool {
	if p == nil {
		return false
	}
	if p.Scope == ScopeObserver {
		return true
	}
	return strings.EqualFold(p.Ship, ship)
}

type header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

type claims struct {
	Ship    string `json:"sub"`
	Scope   string `json:"scope"`
	Expires int64  `json:"exp"`
	Issued  int64  `json:"iat"`
}

// Signer issues and verifies compact HS256 HUD passes.
type Signer struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// NewSigner constructs a signer for the supplied shared secret and clock skew allowance.
func NewSigner(secret string, leeway time.Duration) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("hud secret must not be empty")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &Signer{secret: []byte(secret), now: time.Now, leeway: leeway}, nil
}

// WithClock overrides the signer clock.
func (s *Signer) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	s.now = clock
}

// Issue signs a pass for the ship that expires after ttl.
func (s *Signer) Issue(ship string, scope Scope, ttl time.Duration) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", errors.New("signer not initialised")
	}
	ship = strings.TrimSpace(ship)
	if ship == "" && scope != ScopeObserver {
		return "", fmt.Errorf("%w: pilot pass needs a ship", ErrInvalidPass)
	}
	if scope == "" {
		scope = ScopePilot
	}
	if ship == "" {
		ship = "*"
	}
	now := s.now()
	head, err := json.Marshal(header{Algorithm: "HS256", Type: "JWT"})
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(claims{Ship: ship, Scope: string(scope), Expires: now.Add(ttl).Unix(), Issued: now.Unix()})
	if err != nil {
		return "", err
	}
	input := encodeSegment(head) + "." + encodeSegment(body)
	return input + "." + encodeSegment(s.sign([]byte(input))), nil
}

// Verify parses the token and validates the signature, scope and expiry.
func (s *Signer) Verify(token string) (*Pass, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, errors.New("signer not initialised")
	}
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return nil, ErrInvalidPass
	}

	//1.- Reject anything but HS256 before touching the signature.
	var head header
	if err := decodeJSON(parts[0], &head); err != nil {
		return nil, ErrInvalidPass
	}
	if head.Algorithm != "HS256" {
		return nil, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidPass, head.Algorithm)
	}

	//2.- Compare signatures in constant time.
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(sig, s.sign([]byte(parts[0]+"."+parts[1]))) {
		return nil, ErrInvalidPass
	}

	var body claims
	if err := decodeJSON(parts[1], &body); err != nil {
		return nil, ErrInvalidPass
	}
	scope := Scope(body.Scope)
	if scope != ScopePilot && scope != ScopeObserver {
		return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidPass, body.Scope)
	}
	if strings.TrimSpace(body.Ship) == "" || body.Expires <= 0 {
		return nil, ErrInvalidPass
	}

	//3.- Expiry honours the configured leeway.
	expires := time.Unix(body.Expires, 0)
	if expires.Add(s.leeway).Before(s.now()) {
		return nil, ErrExpiredPass
	}
	return &Pass{Ship: body.Ship, Scope: scope, IssuedAt: time.Unix(body.Issued, 0), ExpiresAt: expires}, nil
}

func (s *Signer) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

func encodeSegment(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeJSON(segment string, out any) error {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
