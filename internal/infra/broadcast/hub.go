// ストレージの変更通知を同じoriginのタブへ配る
package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"

	repo "cartsync/internal/repository"
)

// Hub は通知をoriginごとに配る。書いたタブ自身には送らない。
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[string]*mailbox

	published atomic.Uint64
	delivered atomic.Uint64
}

// DI
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, subs: make(map[string]map[string]*mailbox)}
}

// 同じタブで2回購読したら前の購読は閉じる
func (h *Hub) Subscribe(origin string, tabID string) repo.Subscription {
	mb := newMailbox(h, origin, tabID)

	h.mu.Lock()
	tabs, ok := h.subs[origin]
	if !ok {
		tabs = make(map[string]*mailbox)
		h.subs[origin] = tabs
	}
	prev := tabs[tabID]
	tabs[tabID] = mb
	h.mu.Unlock()

	if prev != nil {
		prev.shutdown()
	}
	go mb.run()
	return mb
}

// 遅い購読者がいてもPublishは止まらない
func (h *Hub) Publish(ev repo.ChangeEvent) {
	h.published.Add(1)

	h.mu.RLock()
	targets := make([]*mailbox, 0, len(h.subs[ev.Origin]))
	for tabID, mb := range h.subs[ev.Origin] {
		if tabID == ev.SourceTab {
			continue
		}
		targets = append(targets, mb)
	}
	h.mu.RUnlock()

	for _, mb := range targets {
		mb.enqueue(ev)
	}
	h.log.Debug("storage_change_published",
		"origin", ev.Origin,
		"key", ev.Key,
		"source_tab", ev.SourceTab,
		"receivers", len(targets),
	)
}

func (h *Hub) SubscriberCount(origin string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[origin])
}

// 送った件数と届いた件数
func (h *Hub) Metrics() (published, delivered uint64) {
	return h.published.Load(), h.delivered.Load()
}

func (h *Hub) remove(mb *mailbox) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tabs, ok := h.subs[mb.origin]
	if !ok {
		return
	}
	if tabs[mb.tabID] == mb {
		delete(tabs, mb.tabID)
	}
	if len(tabs) == 0 {
		delete(h.subs, mb.origin)
	}
}

// 1購読分の受け箱。上限なしで溜めて、専用のgoroutineがoutへ流す。
type mailbox struct {
	hub    *Hub
	origin string
	tabID  string

	mu      sync.Mutex
	backlog []repo.ChangeEvent
	notify  chan struct{}
	out     chan repo.ChangeEvent
	done    chan struct{}
	once    sync.Once
}

func newMailbox(h *Hub, origin, tabID string) *mailbox {
	return &mailbox{
		hub:    h,
		origin: origin,
		tabID:  tabID,
		notify: make(chan struct{}, 1),
		out:    make(chan repo.ChangeEvent, 16),
		done:   make(chan struct{}),
	}
}

func (m *mailbox) Events() <-chan repo.ChangeEvent { return m.out }

// 購読をやめる。goroutineが終わるとEventsも閉じる。
func (m *mailbox) Close() {
	m.hub.remove(m)
	m.shutdown()
}

func (m *mailbox) shutdown() {
	m.once.Do(func() { close(m.done) })
}

func (m *mailbox) enqueue(ev repo.ChangeEvent) {
	select {
	case <-m.done:
		return
	default:
	}
	m.mu.Lock()
	m.backlog = append(m.backlog, ev)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (repo.ChangeEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.backlog) == 0 {
		return repo.ChangeEvent{}, false
	}
	ev := m.backlog[0]
	m.backlog = m.backlog[1:]
	return ev, true
}

func (m *mailbox) run() {
	defer close(m.out)
	for {
		ev, ok := m.pop()
		if !ok {
			select {
			case <-m.done:
				return
			case <-m.notify:
				continue
			}
		}
		select {
		case <-m.done:
			return
		case m.out <- ev:
			m.hub.delivered.Add(1)
		}
	}
}
