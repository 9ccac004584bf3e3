// Package services orchestrates storage, the ledger engine and event
// publishing for the HTTP API and the worker.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tuition/internal/amqp"
	"tuition/internal/storage"
)

// Publisher sends ledger events. *amqp.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

const isoDate = "2006-01-02"

// publish never fails the caller; the write already happened.
func publish(ctx context.Context, p Publisher, ev *amqp.LedgerEvent) {
	if p == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", ev.Type)
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"error", err)
	}
}

func loadList[T any](ctx context.Context, store storage.Store, name storage.Collection) ([]T, error) {
	var out []T
	if _, err := store.LoadCollection(ctx, name, &out); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func today(now func() time.Time) string {
	return now().Format(isoDate)
}
