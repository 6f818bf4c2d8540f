package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	repo "cartsync/internal/repository"

	"github.com/jackc/pgx/v5"
)

// PGListener はpg_notifyの通知をHubへ流す（別プロセスの書き込みもタブに届く）。
type PGListener struct {
	connString string
	channel    string
	pub        repo.ChangePublisher
	log        *slog.Logger

	retryDelay time.Duration
}

// DI
func NewPGListener(connString, channel string, pub repo.ChangePublisher, log *slog.Logger) *PGListener {
	if log == nil {
		log = slog.Default()
	}
	return &PGListener{
		connString: connString,
		channel:    channel,
		pub:        pub,
		log:        log,
		retryDelay: time.Second,
	}
}

// ctxが終わるまでLISTENする。切れたら少し待って繋ぎ直す。
func (l *PGListener) Run(ctx context.Context) {
	for {
		err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		l.log.Warn("pg_listener_disconnected", "channel", l.channel, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *PGListener) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %q: %w", l.channel, err)
	}
	l.log.Info("pg_listener_ready", "channel", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		ev, err := DecodeNotification(n.Payload)
		if err != nil {
			l.log.Warn("pg_listener_bad_payload", "channel", n.Channel, "error", err)
			continue
		}
		l.pub.Publish(ev)
	}
}

// pg_notifyに載せる形
func EncodeNotification(ev repo.ChangeEvent) (string, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// originとkeyは必須
func DecodeNotification(payload string) (repo.ChangeEvent, error) {
	var ev repo.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return repo.ChangeEvent{}, err
	}
	if ev.Origin == "" || ev.Key == "" {
		return repo.ChangeEvent{}, fmt.Errorf("payload missing origin or key")
	}
	return ev, nil
}
