package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

const RoleAdmin = "admin"

const algHS256 = "HS256"

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Exp  int64  `json:"exp"`
	Iat  int64  `json:"iat"`
}

// Expired reports whether the claims carry an expiry that now has passed.
func (c Claims) Expired(now time.Time) bool {
	return c.Exp > 0 && now.Unix() > c.Exp
}

type joseHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Issue signs a token for sub/role valid for ttl from now.
func Issue(sub, role, secret string, ttl time.Duration, now time.Time) (string, error) {
	return SignHS256(Claims{
		Sub:  sub,
		Role: role,
		Iat:  now.Unix(),
		Exp:  now.Add(ttl).Unix(),
	}, secret)
}

func SignHS256(claims Claims, secret string) (string, error) {
	head, err := encodeSegment(joseHeader{Alg: algHS256, Typ: "JWT"})
	if err != nil {
		return "", err
	}
	body, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}
	input := head + "." + body
	return input + "." + signature(input, secret), nil
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	return verifyAt(token, secret, time.Now())
}

func verifyAt(token, secret string, now time.Time) (*Claims, error) {
	head, rest, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidToken
	}
	body, sig, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(sig, ".") {
		return nil, ErrInvalidToken
	}

	var h joseHeader
	if decodeSegment(head, &h) != nil || h.Alg != algHS256 {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(signature(head+"."+body, secret))) {
		return nil, ErrInvalidToken
	}

	var claims Claims
	if decodeSegment(body, &claims) != nil || claims.Expired(now) {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func signature(input, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
