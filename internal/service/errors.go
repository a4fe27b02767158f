package service

import "errors"

// ErrPermissionDenied means the caller is not the owner of the record it
// tried to touch. Rejected before any state mutation.
var ErrPermissionDenied = errors.New("permission denied")
