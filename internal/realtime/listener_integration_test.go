package realtime

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func TestPGListenerDeliversNotifications(t *testing.T) {
	dbURL := os.Getenv("TEST_DB_URL")
	if dbURL == "" {
		t.Skip("TEST_DB_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	events := make(chan ChangeEvent, 4)
	listener := NewPGListener(pool, "realtime_changes_test")
	go func() {
		_ = listener.Run(ctx, func(event ChangeEvent) {
			select {
			case events <- event:
			default:
			}
		})
	}()

	// LISTEN is asynchronous with respect to Run; keep notifying until the
	// first event arrives.
	payloads := []string{
		`garbage`,
		`{"table":"messages","type":"DELETE"}`,
	}
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case event := <-events:
			if event.Table != TableMessages || event.Type != EventDelete {
				t.Fatalf("unexpected event %+v", event)
			}
			if event.Old != nil || event.New != nil {
				t.Fatalf("expected no row images, got %+v", event)
			}
			return
		case <-ticker.C:
			for _, payload := range payloads {
				if _, err := pool.Exec(ctx, "SELECT pg_notify('realtime_changes_test', $1)", payload); err != nil {
					t.Fatalf("notify: %v", err)
				}
			}
		case <-deadline:
			t.Fatal("no notification delivered")
		}
	}
}

func TestRedisBridgeRoundTrip(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager := NewManager(time.Millisecond)
	defer manager.Close()
	bridge := NewRedisBridge(client)
	manager.SetBridge(bridge)
	go func() { _ = bridge.Run(ctx, manager.Dispatch) }()

	got := make(chan ChangeEvent, 1)
	manager.Subscribe(TableNotifications, EventInsert, func(_ context.Context, event ChangeEvent) {
		select {
		case got <- event:
		default:
		}
	})

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case event := <-got:
			if event.New["notification_id"] != "n1" {
				t.Fatalf("unexpected event %+v", event)
			}
			return
		case <-ticker.C:
			err := manager.Publish(ctx, ChangeEvent{
				Table: TableNotifications,
				Type:  EventInsert,
				New:   map[string]any{"notification_id": "n1"},
			})
			if err != nil {
				t.Fatalf("publish: %v", err)
			}
		case <-deadline:
			t.Fatal("no event came back through redis")
		}
	}
}
