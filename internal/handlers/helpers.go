package handlers

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// rootSentinel is the folder id clients send to mean "no folder".
const rootSentinel = "root"

var hexColorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func isValidHexColor(value string) bool {
	return hexColorPattern.MatchString(value)
}

// isUniqueViolation recognizes unique-index failures from both the postgres
// driver (translated by gorm) and the sqlite driver used in tests. The
// application pre-checks duplicates, but under concurrency the index is the
// guard that actually holds.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
