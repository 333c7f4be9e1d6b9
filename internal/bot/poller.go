// ABOUTME: Long-polling update loop for deployments without a public endpoint
// ABOUTME: Clears any webhook first, then drains getUpdates until the context ends

package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	defaultPollTimeout = 50 * time.Second
	pollErrorBackoff   = 3 * time.Second
)

// Poller drives the dispatcher from getUpdates long polls. Updates are
// handled sequentially, which keeps per-chat ordering without locks.
type Poller struct {
	client     *Client
	dispatcher *Dispatcher
	logger     *slog.Logger
	timeout    time.Duration
}

// NewPoller creates a Poller.
func NewPoller(client *Client, dispatcher *Dispatcher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger.With("component", "poller"),
		timeout:    defaultPollTimeout,
	}
}

// Run polls until ctx is cancelled. A webhook registration would starve
// getUpdates, so it is removed up front.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.client.DeleteWebhook(ctx); err != nil {
		p.logger.Warn("failed to delete webhook before polling", "error", err)
	}
	p.logger.Info("polling for updates", "timeout", p.timeout)

	var offset int64
	for {
		updates, err := p.client.GetUpdates(ctx, offset, int(p.timeout.Seconds()))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("getUpdates failed", "error", err)
			select {
			case <-time.After(pollErrorBackoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			p.dispatcher.HandleUpdate(ctx, update)
		}

		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
