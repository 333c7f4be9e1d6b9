// Package chat defines the conversation data model shared by the store,
// the provider client and the session engine: turns with a role, and the
// text and image parts a turn is made of.
package chat
