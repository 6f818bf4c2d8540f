package repository

import (
	"context"
)

// 書き込み1回分。SourceTabは書いたタブ（通知を自分に返さないため）。
type Write struct {
	Origin    string
	Key       string
	Value     string
	SourceTab string
}

// ストレージが変わったときの通知。
// 同じoriginの「書いたタブ以外」に届く。
type ChangeEvent struct {
	Origin    string `json:"origin"`
	Key       string `json:"key"`
	SourceTab string `json:"source_tab"`
}

// originごとの文字列key-valueストレージ。
// SetItemが成功したら、実装側が変更通知を流すことを約束。
type StorageRepository interface {
	GetItem(ctx context.Context, origin string, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, w Write) error
}

// 変更通知を流す側
type ChangePublisher interface {
	Publish(ev ChangeEvent)
}

// 1タブ分の購読
type Subscription interface {
	Events() <-chan ChangeEvent
	Close()
}

// 変更通知をタブ単位で受け取る側
type ChangeSubscriber interface {
	Subscribe(origin string, tabID string) Subscription
}
