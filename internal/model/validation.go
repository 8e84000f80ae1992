package model

import "fmt"

// ValidationError is a user-facing rejection raised when saving rules.
type ValidationError struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (e ValidationError) Error() string {
	if e.Description == "" {
		return e.Title
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Description)
}
