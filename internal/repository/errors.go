package repository

import "errors"

var (
	ErrNotFound = errors.New("resource not found")

	// ErrWriteConflict marks a transactional race on a contended document.
	// Callers are expected to retry through retrytx rather than surface it.
	ErrWriteConflict = errors.New("write conflict")

	// ErrAlreadySaved is the dedupe short-circuit of the shared-deck save
	// transaction: the membership record already exists.
	ErrAlreadySaved = errors.New("shared deck already saved")
)
