package service

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// Domain errors. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrValidation            = errors.New("validation failed")
	ErrAlreadySubmitted      = errors.New("exam already submitted")
	ErrStaleAutosave         = errors.New("autosave is older than the stored draft")
	ErrExamNotAvailable      = errors.New("exam is not accepting answers")
	ErrAnswerKeyNotInOptions = errors.New("answer key must be one of the options")
	ErrInvalidTransition     = errors.New("invalid exam status transition")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrDuplicate             = errors.New("already exists")
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
