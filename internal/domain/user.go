// Package domain contains core domain types for the quiz chat front end.
package domain

import "strings"

// Credentials is a username/password pair submitted through the auth forms.
// Credentials live only for the duration of a request and are never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return &ValidationError{Field: "username", Message: "Please enter a username"}
	}
	if c.Password == "" {
		return &ValidationError{Field: "password", Message: "Please enter a password"}
	}
	return nil
}

// Registration is a registration form submission.
type Registration struct {
	Credentials
	ConfirmPassword string
}

// Validate checks the credentials and the password confirmation.
func (r Registration) Validate() error {
	if err := r.Credentials.Validate(); err != nil {
		return err
	}
	if r.Password != r.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Message: "Passwords do not match"}
	}
	return nil
}
