package service

import (
	"errors"

	"github.com/noah-isme/coursehub-api/internal/repository"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

func isNotFound(err error) bool {
	return repository.IsNotFound(err)
}

// passThrough returns err as a typed error when it already is one.
func passThrough(err error) (*appErrors.Error, bool) {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func mapCourseError(err error, msg string) error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if appErr, ok := passThrough(err); ok {
		return appErr
	}
	return appErrors.Internal(err, msg)
}

func mapEnrollmentError(err error, msg string) error {
	if isNotFound(err) {
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if appErr, ok := passThrough(err); ok {
		return appErr
	}
	return appErrors.Internal(err, msg)
}
