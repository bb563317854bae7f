package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash suitable for admin_password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAdmin reports whether username/password match the configured admin.
// An unset admin never matches.
func CheckAdmin(adminUsername, adminPasswordHash, username, password string) bool {
	if adminUsername == "" || adminPasswordHash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(adminUsername), []byte(username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(adminPasswordHash), []byte(password)) == nil
	return userOK && passOK
}
