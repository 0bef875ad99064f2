package dnd5

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAbilityIndex is returned for indexes outside AbilityIndexes.
	ErrInvalidAbilityIndex = errors.New("invalid ability score index")
	// ErrInvalidSpellLevel is returned for spell levels outside 0..9.
	ErrInvalidSpellLevel = errors.New("spell level must be between 0 and 9")
	// ErrInvalidChallengeRating is returned when a challenge rating cannot be parsed.
	ErrInvalidChallengeRating = errors.New("invalid challenge rating")
)

// APIError describes a failed call to the reference API. StatusCode is zero
// when no HTTP response was received.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("reference api error: %d - %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("reference api request failed: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
