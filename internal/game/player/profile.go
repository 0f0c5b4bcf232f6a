// Package player defines the durable Player Profile and the credential helpers
// shared by every profile store.
package player

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Profile is the durable record of a player's credentials, location and presence.
type Profile struct {
	ID             int64
	Username       string
	PasswordHash   string
	LocationRoomID int
	Connected      bool
	CreatedAt      time.Time
}

// ErrProfileExists is returned when creating a profile for a username that is taken.
var ErrProfileExists = errors.New("profile already exists")

// ErrProfileNotFound is returned when a profile lookup yields no results.
var ErrProfileNotFound = errors.New("profile not found")

// ErrAlreadyConnected is returned when marking connected a profile that already is.
var ErrAlreadyConnected = errors.New("profile already connected")

// HashPassword creates a bcrypt hash of the given password. Passwords of any
// length are accepted: bcrypt sees the base64 SHA-256 digest, which stays
// under its 72-byte input limit.
//
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(digest(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a hash from HashPassword.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(password)) == nil
}

func digest(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// Authenticate reports whether password matches the profile's credential.
func (p Profile) Authenticate(password string) bool {
	return CheckPassword(password, p.PasswordHash)
}
