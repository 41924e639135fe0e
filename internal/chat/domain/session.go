package domain

import "strings"

// Session identifies the authenticated user for the lifetime of the process.
type Session struct {
	UserID            string `json:"userId"`
	Username          string `json:"username"`
	PreferredLanguage string `json:"language"`
}

// Valid reports whether the session carries the identity required to connect.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.Username) != ""
}
