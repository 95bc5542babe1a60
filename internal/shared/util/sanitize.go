package util

import (
	"errors"
	"strings"
)

// ErrBadFileName rejects names that are empty or attempt path traversal.
var ErrBadFileName = errors.New("invalid file name")

var separatorReplacer = strings.NewReplacer("/", "_", "\\", "_")

// SanitizeFileName normalizes an uploaded file name for use inside a storage
// key. Path separators become underscores; ".." anywhere is rejected outright.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrBadFileName
	}
	s := separatorReplacer.Replace(strings.TrimSpace(name))
	if s == "" {
		return "", ErrBadFileName
	}
	return s, nil
}
