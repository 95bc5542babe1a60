package documents

import "errors"

// ErrNotFound indicates the requested document does not exist for the user.
var ErrNotFound = errors.New("document not found")

// ErrInvalidInput indicates a rejected upload (bad name, empty file, or an
// unsupported format).
var ErrInvalidInput = errors.New("invalid input")
