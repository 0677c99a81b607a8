package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2KeyLen = 32
	saltLen      = 16
)

// Hasher produces argon2id password hashes in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=4$salt$hash
type Hasher struct {
	time    uint32
	memory  uint32 // KiB
	threads uint8
}

func NewHasher(time, memory uint32, threads uint8) *Hasher {
	return &Hasher{time: time, memory: memory, threads: threads}
}

// Hash creates an argon2id hash of the password
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks password against encodedHash. needsRehash is true when the
// password matched a legacy bcrypt hash or argon2id parameters that differ
// from the current ones.
func (h *Hasher) Verify(encodedHash, password string) (ok, needsRehash bool) {
	if isBcrypt(encodedHash) {
		if bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) != nil {
			return false, false
		}
		return true, true
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, false
	}

	inputHash := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(decodedHash)))

	// Compare hashes using constant-time comparison
	if subtle.ConstantTimeCompare(decodedHash, inputHash) != 1 {
		return false, false
	}

	return true, memory != h.memory || time != h.time || threads != h.threads
}

// isBcrypt matches hashes written by bcryptjs in earlier deployments
func isBcrypt(encodedHash string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encodedHash, prefix) {
			return true
		}
	}
	return false
}
