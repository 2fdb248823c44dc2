package controllers

import "errors"

var (
	ErrValidation         = errors.New("invalid request")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrRoleNotAllowed     = errors.New("action not allowed for this role")
	ErrStorageDisabled    = errors.New("audio storage is not configured")
)
