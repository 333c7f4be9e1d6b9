// Package bot is the Telegram-facing edge of gemini-tel-bot.
//
// Client is a minimal Bot API client covering updates, messages,
// callbacks and file downloads. Dispatcher routes each inbound update
// to the conversation engine: commands map to engine operations, text
// and photo messages become Part lists for the message flow, and
// inline-keyboard callbacks drive model selection. Sender implements
// the engine's Transport, rendering Markdown replies to Telegram HTML
// and splitting them at the 4096-character cap.
//
// Updates arrive either through Poller (getUpdates long polling) or
// WebhookServer (Telegram pushes over HTTPS, verified by a shared
// secret header); both feed the same Dispatcher.
package bot
