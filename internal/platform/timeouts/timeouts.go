// Package timeouts defines shared timeout constants used across the client.
// Centralizing these values prevents drift between components and makes the
// durations discoverable.
package timeouts

import "time"

// Dial caps the wait time when establishing the chat WebSocket connection.
const Dial = 5 * time.Second

// ReconnectDelay is the fixed pause between reconnection attempts after an
// unexpected transport drop.
const ReconnectDelay = 1000 * time.Millisecond

// HTTPRequest caps the time allowed for a single HTTP API call (login,
// history load, message report).
const HTTPRequest = 5 * time.Second

// TypingExpiry is how long a typing indicator stays visible after the last
// signal from a user.
const TypingExpiry = 3000 * time.Millisecond

// NoticeExpiry is the default lifetime of an ephemeral user notice.
const NoticeExpiry = 3000 * time.Millisecond

// PresenceNoticeExpiry is the shorter lifetime used for join/leave notices.
const PresenceNoticeExpiry = 2000 * time.Millisecond
