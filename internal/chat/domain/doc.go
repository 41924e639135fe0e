// Package domain holds the chat client's core types: the authenticated
// session, the static room catalog, and the immutable message record the
// moderation/translation backend produces.
package domain
