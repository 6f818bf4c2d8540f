package usecase

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	repo "cartsync/internal/repository"
)

type NoticeKind string

const (
	NoticeAlert NoticeKind = "alert"
	NoticeToast NoticeKind = "toast"
)

// 画面に一時的に出すメッセージ
type Notice struct {
	ID        string     `json:"id"`
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// GET /tabs/:id の中身
type TabSnapshot struct {
	TabID   string   `json:"tab_id"`
	Origin  string   `json:"origin"`
	View    View     `json:"view"`
	Notices []Notice `json:"notices"`
}

// Tab は開いているタブ1つ分。カート・同期・表示を持つ。
type Tab struct {
	ID     string
	Origin string
	Cart   *CartState

	idGen    IDGenerator
	clock    Clock
	toastTTL time.Duration

	sub    repo.Subscription
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	view     View
	notices  []Notice
	watchers map[chan View]struct{}
	closed   bool
}

// Render はRendererとして最新の表示を保持し、watcherへ流す。
func (t *Tab) Render(v View) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.view = v
	for ch := range t.watchers {
		//遅いwatcherは古い表示を捨てて最新だけ残す
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func (t *Tab) Alert(msg string) { t.addNotice(NoticeAlert, msg) }

func (t *Tab) Toast(msg string) { t.addNotice(NoticeToast, msg) }

func (t *Tab) addNotice(kind NoticeKind, msg string) {
	n := Notice{
		ID:        t.idGen.NewID(),
		Kind:      kind,
		Message:   msg,
		CreatedAt: t.clock.Now(),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.notices = append(t.notices, n)
	t.mu.Unlock()

	//一定時間で消す（結果は待たない）
	time.AfterFunc(t.toastTTL, func() { t.dismiss(n.ID) })
}

func (t *Tab) dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, n := range t.notices {
		if n.ID == id {
			t.notices = append(t.notices[:i:i], t.notices[i+1:]...)
			return
		}
	}
}

func (t *Tab) Snapshot() TabSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	notices := make([]Notice, len(t.notices))
	copy(notices, t.notices)
	return TabSnapshot{
		TabID:   t.ID,
		Origin:  t.Origin,
		View:    t.view,
		Notices: notices,
	}
}

// Watch は描画のたびに最新の表示を受け取るチャンネルを返す。
// 最初に今の表示が1つ入っている。
func (t *Tab) Watch() (<-chan View, func()) {
	ch := make(chan View, 1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	ch <- t.view
	t.watchers[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.watchers[ch]; ok {
				delete(t.watchers, ch)
				close(ch)
			}
		})
	}
	return ch, stop
}

// Done はタブが閉じたら閉じる。
func (t *Tab) Done() <-chan struct{} { return t.done }

func (t *Tab) close() {
	t.cancel()
	t.sub.Close()
	<-t.done

	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for ch := range t.watchers {
		delete(t.watchers, ch)
		close(ch)
	}
}

// タブを開くときの設定
type TabOptions struct {
	StorageKey string
	Aliases    []string
	ToastTTL   time.Duration
}

// TabRegistry は開いているタブの一覧。
type TabRegistry struct {
	storage repo.StorageRepository
	subs    repo.ChangeSubscriber
	idGen   IDGenerator
	clock   Clock
	opts    TabOptions
	log     *slog.Logger

	mu   sync.RWMutex
	tabs map[string]*Tab
}

// DI
func NewTabRegistry(
	storage repo.StorageRepository,
	subs repo.ChangeSubscriber,
	idGen IDGenerator,
	clock Clock,
	opts TabOptions,
	log *slog.Logger,
) *TabRegistry {
	if log == nil {
		log = slog.Default()
	}
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = 2 * time.Second
	}
	return &TabRegistry{
		storage: storage,
		subs:    subs,
		idGen:   idGen,
		clock:   clock,
		opts:    opts,
		log:     log,
		tabs:    make(map[string]*Tab),
	}
}

// Open はページを開いたときと同じ：保存値を読んで描画し、同期を始める。
func (r *TabRegistry) Open(ctx context.Context, origin string) (*Tab, error) {
	if origin == "" {
		return nil, NewHTTPError(http.StatusBadRequest, "origin is required")
	}

	id := r.idGen.NewID()
	log := r.log.With("origin", origin, "tab_id", id)

	runCtx, cancel := context.WithCancel(context.Background())
	t := &Tab{
		ID:       id,
		Origin:   origin,
		idGen:    r.idGen,
		clock:    r.clock,
		toastTTL: r.opts.ToastTTL,
		cancel:   cancel,
		done:     make(chan struct{}),
		watchers: make(map[chan View]struct{}),
	}

	//読む前に購読しておく（その間の書き込みを取りこぼさない）
	t.sub = r.subs.Subscribe(origin, id)

	storage := NewCartStorage(r.storage, origin, id, r.opts.StorageKey, log)
	t.Cart = NewCartState(storage.Load(ctx), storage, t, t, log)
	t.Cart.Render()

	syncer := NewSynchronizer(storage, t.Cart, r.opts.Aliases, log)
	go func() {
		defer close(t.done)
		syncer.Run(runCtx, t.sub.Events())
	}()

	r.mu.Lock()
	r.tabs[id] = t
	r.mu.Unlock()

	log.Info("tab_opened", "items", len(t.Cart.Items()))
	return t, nil
}

func (r *TabRegistry) Get(id string) (*Tab, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tabs[id]
	if !ok {
		return nil, ErrTabNotFound
	}
	return t, nil
}

// Close はタブを閉じる。メモリ上のカートは捨て、保存値は残る。
func (r *TabRegistry) Close(id string) error {
	r.mu.Lock()
	t, ok := r.tabs[id]
	if ok {
		delete(r.tabs, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrTabNotFound
	}
	t.close()
	r.log.Info("tab_closed", "origin", t.Origin, "tab_id", t.ID)
	return nil
}

func (r *TabRegistry) CloseAll() {
	r.mu.Lock()
	tabs := r.tabs
	r.tabs = make(map[string]*Tab)
	r.mu.Unlock()

	for _, t := range tabs {
		t.close()
	}
}

func (r *TabRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tabs)
}
