package models

import "github.com/pkg/errors"

var (
	ErrNotFound             = errors.New("tracking not found")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// ErrInvalidArgument — ошибка валидации входных данных команды.
var ErrInvalidArgument = errors.New("invalid argument")
