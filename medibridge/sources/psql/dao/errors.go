package dao

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("not a participant of this session")
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrAlreadySettled    = errors.New("translation already settled")
	ErrSessionOpen       = errors.New("patient already has an open consultation")
	ErrInvalidTransition = errors.New("invalid session status transition")
	ErrEmailTaken        = errors.New("email already registered")
)

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
