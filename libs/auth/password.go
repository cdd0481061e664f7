package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func VerifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}

// AdminCredentials is the single back-office account of the practice.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

func (c AdminCredentials) Check(email, password string) error {
	if c.Email == "" || c.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(strings.TrimSpace(c.Email))),
	) == 1
	if err := VerifyPassword(c.PasswordHash, password); err != nil || !emailOK {
		return ErrInvalidCredentials
	}
	return nil
}
