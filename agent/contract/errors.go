package contract

import "errors"

var (
	ErrModelInvoke    = errors.New("model invoke failed")
	ErrValidation     = errors.New("validation failed")
	ErrPromptMissing  = errors.New("required prompt is missing")
	ErrLookupMiss     = errors.New("lookup found no answer")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrInvalidSession = errors.New("session id is empty")
)
