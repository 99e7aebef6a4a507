package realtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel is the channel notify_realtime_change() in
// migrations/000002_realtime_triggers.up.sql sends to.
const NotifyChannel = "realtime_changes"

// PGListener turns NOTIFY payloads written by the table triggers in
// migrations/ into change events. It holds one pooled connection while
// running and reconnects after failures.
type PGListener struct {
	pool       *pgxpool.Pool
	channel    string
	retryDelay time.Duration
}

func NewPGListener(pool *pgxpool.Pool, channel string) *PGListener {
	return &PGListener{
		pool:       pool,
		channel:    channel,
		retryDelay: 2 * time.Second,
	}
}

func (l *PGListener) Run(ctx context.Context, sink func(ChangeEvent)) error {
	for {
		err := l.listen(ctx, sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("realtime: listener on %q stopped: %v, retrying in %s", l.channel, err, l.retryDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *PGListener) listen(ctx context.Context, sink func(ChangeEvent)) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	channel := pgx.Identifier{l.channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	defer func() {
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN *")
	}()

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		event, err := DecodeChangeEvent([]byte(notification.Payload))
		if err != nil {
			log.Printf("realtime: dropping malformed notification: %v", err)
			continue
		}
		sink(event)
	}
}
