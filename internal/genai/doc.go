// Package genai is the client for the Google Gemini REST API.
//
// Client covers model listing and chat generation; StartChat returns a
// Chat that replays stored history and appends each exchange locally,
// mirroring the API's stateless generateContent contract. API failures
// surface as *APIError with predicate helpers (IsNotFound,
// IsPermissionDenied, ...), and Classify maps them to the closed set of
// reply categories the conversation engine understands, including the
// quota Help link extracted from 429 details.
//
// ClientCache shares clients per API key with TTL and size-bounded
// eviction so per-chat keys do not construct a client per message.
// FilterCurated trims a model listing to the embedded curated catalog.
package genai
