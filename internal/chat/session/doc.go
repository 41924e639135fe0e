// Package session coordinates the chat client state for one signed-in user.
//
// The controller owns room membership and the history/live-message merge; the
// facade routes inbound transport events to the right component and exposes
// the user-facing operations (send, typing, room switch, language change,
// report, logout).
package session
