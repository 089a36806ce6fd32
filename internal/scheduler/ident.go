package scheduler

import (
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"
)

// IdentPattern matches task identifiers accepted from callers.
var IdentPattern = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)

// NewIdent returns 128 random bits as 32 lowercase hex characters.
func NewIdent() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id[:]), nil
}

// ValidIdent reports whether s looks like a task identifier.
func ValidIdent(s string) bool {
	return IdentPattern.MatchString(s)
}
