package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wapulse/internal/repositories"
)

func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrDuplicate):
		return ErrConflict
	}
	return err
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeMobile(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

func validTimezone(tz string) bool {
	_, err := time.LoadLocation(tz)
	return err == nil
}
