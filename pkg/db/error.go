package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Driver-specific duplicate-key messages, matched as substrings since
// the drivers do not agree on a sentinel error.
var duplicateKeyMessages = []string{
	"duplicate key value violates unique constraint", // postgres 23505
	"Error 1062",               // mysql
	"UNIQUE constraint failed", // sqlite 2067
}

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	for _, needle := range duplicateKeyMessages {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
