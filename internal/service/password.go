package service

import "golang.org/x/crypto/bcrypt"

// passwordCost keeps a single verification in the tens-of-milliseconds
// range on current hardware.
const passwordCost = 12

// HashPassword computes a salted bcrypt digest of the plaintext.
func HashPassword(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), passwordCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// VerifyPassword reports whether plaintext matches the stored digest.
// bcrypt performs its own constant-time comparison, and a malformed or
// corrupted digest verifies as false rather than failing the request.
func VerifyPassword(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
