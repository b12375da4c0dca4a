package project

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const secretBytes = 24 // 24 random bytes -> 48 hex chars, comfortably over the 32-char minimum

// newAPIKeySecret returns the plaintext key in {project_id}_{key_id}_{secret}
// form plus the generated key_id, as described in spec §6.
func newAPIKeySecret(projectID string) (plaintext, keyID string, err error) {
	keyID = uuid.NewString()

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	plaintext = fmt.Sprintf("%s_%s_%s", projectID, keyID, secret)
	return plaintext, keyID, nil
}

func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func keyPrefix(plaintext string) string {
	if len(plaintext) <= 20 {
		return plaintext
	}
	return plaintext[:20]
}

// parseAPIKeyProjectID extracts the project_id segment (the text before the
// first underscore) from a {project_id}_{key_id}_{secret} key, requiring at
// least three underscore-separated parts.
func parseAPIKeyProjectID(plaintext string) (string, bool) {
	parts := strings.SplitN(plaintext, "_", 3)
	if len(parts) < 3 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}
