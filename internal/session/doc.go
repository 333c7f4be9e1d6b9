// Package session orchestrates one conversational exchange between a
// chat transport and the Gemini provider.
//
// Each inbound message runs through the same pipeline: pending-input
// check, settings fetch, quota gate, client resolution, history replay,
// the provider round trip, history reconciliation and the reply. The
// package owns the quota counter semantics and the awaiting-API-key
// state machine; it talks to the outside world only through the small
// Transport, Provider and ClientResolver interfaces, which keeps the
// whole flow testable with fakes.
package session
