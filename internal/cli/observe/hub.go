// Package observe публикует живые снимки локального хранилища подписчикам.
package observe

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/query"

	"go.uber.org/zap"
)

// Loader читает текущее содержимое таблицы.
type Loader[P model.Payload] func(ctx context.Context) ([]model.Record[P], error)

// Hub раздаёт снимки таблицы подписчикам с собственными фильтрами.
type Hub[P model.Payload] struct {
	load   Loader[P]
	logger *zap.SugaredLogger

	// refreshMu сериализует перечитывания, чтобы снимки уходили в порядке записей
	refreshMu sync.Mutex

	mu     sync.Mutex
	subs   map[uint64]*Subscription[P]
	nextID uint64
}

// NewHub создаёт хаб поверх функции чтения таблицы.
func NewHub[P model.Payload](load Loader[P], logger *zap.SugaredLogger) *Hub[P] {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub[P]{load: load, logger: logger, subs: make(map[uint64]*Subscription[P])}
}

// Subscription: одна подписка. Канал C хранит только последний снимок.
type Subscription[P model.Payload] struct {
	C <-chan []model.Record[P]

	id     uint64
	filter query.Filter
	ch     chan []model.Record[P]
	last   []version
	hub    *Hub[P]
	stop   func() bool
	once   sync.Once
}

type version struct {
	key        string
	modifiedAt int64
	synced     bool
	deleted    bool
	owner      string
	payload    uint64 // fnv-64a от JSON полезной нагрузки
}

// Filter возвращает фильтр подписки.
func (s *Subscription[P]) Filter() query.Filter { return s.filter }

// Cancel отменяет подписку и закрывает канал. Остальные подписки не затрагиваются.
func (s *Subscription[P]) Cancel() {
	s.stop()
	s.cancel()
}

func (s *Subscription[P]) cancel() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Subscribe регистрирует подписку и сразу кладёт в канал текущую выборку.
// Подписка отменяется вызовом Cancel или отменой ctx.
func (h *Hub[P]) Subscribe(ctx context.Context, f query.Filter) (*Subscription[P], error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	rows, err := h.load(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan []model.Record[P], 1)
	s := &Subscription[P]{C: ch, ch: ch, filter: f, hub: h}

	h.mu.Lock()
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	s.offer(query.Apply(rows, f), true)
	h.mu.Unlock()

	s.stop = context.AfterFunc(ctx, s.cancel)
	return s, nil
}

// Len возвращает число активных подписок.
func (h *Hub[P]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Notify: обработчик изменений таблицы (repo.ChangeFunc).
func (h *Hub[P]) Notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	h.Refresh(context.Background())
}

// Refresh перечитывает таблицу и отправляет снимок тем подпискам, чья выборка изменилась.
func (h *Hub[P]) Refresh(ctx context.Context) {
	if h.Len() == 0 {
		return
	}
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	rows, err := h.load(ctx)
	if err != nil {
		h.logger.Warnw("observe: reload failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		s.offer(query.Apply(rows, s.filter), false)
	}
}

// offer кладёт снимок в канал, вытесняя непрочитанный. Вызывается под h.mu.
func (s *Subscription[P]) offer(snap []model.Record[P], force bool) {
	vs := versions(snap)
	if !force && sameVersions(s.last, vs) {
		return
	}
	s.last = vs
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		// latest wins
		select {
		case <-s.ch:
		default:
		}
	}
}

func versions[P model.Payload](rows []model.Record[P]) []version {
	out := make([]version, 0, len(rows))
	for _, r := range rows {
		out = append(out, version{
			key:        r.Key,
			modifiedAt: r.ModifiedAt,
			synced:     r.Synced,
			deleted:    r.Deleted,
			owner:      r.OwnerKey,
			payload:    fingerprint(r.Payload),
		})
	}
	return out
}

// fingerprint отличает версии с одинаковым modified_at, но разным содержимым.
func fingerprint(p any) uint64 {
	h := fnv.New64a()
	_ = json.NewEncoder(h).Encode(p)
	return h.Sum64()
}

func sameVersions(a, b []version) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
