// Package store holds the gorm-backed repositories used by the automation
// engine and the HTTP API.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrFlowNotFound        = errors.New("flow not found")
	ErrContactNotFound     = errors.New("contact not found")
	ErrSequenceNotFound    = errors.New("sequence not found")
	ErrIntegrationNotFound = errors.New("integration not found")
)

// notFound maps gorm's record-not-found error to the given sentinel.
func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
