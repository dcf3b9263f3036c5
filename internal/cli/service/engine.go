package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Tianguis/internal/cli/api"
	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/observe"
	"Tianguis/internal/cli/query"
	"Tianguis/internal/cli/repo"
	"Tianguis/internal/cli/session"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Remote: серверная коллекция записей одного типа.
type Remote[P model.Payload] interface {
	// FetchAll возвращает все записи; ownerKey сужает выборку.
	FetchAll(ctx context.Context, ownerKey string) ([]model.Record[P], error)
	Create(ctx context.Context, rec model.Record[P]) error
	Update(ctx context.Context, key string, rec model.Record[P]) error
	BulkSync(ctx context.Context, recs []model.Record[P]) (model.SyncBatch[P], error)
}

var _ Remote[model.Listing] = (*api.Resource[model.Listing])(nil)

// RefreshResult: итог фонового обновления из сети. Ошибка сюда не пробрасывается, только фиксируется.
type RefreshResult struct {
	Fetched int
	Applied int
	Skipped int // ключи с локальными неотправленными изменениями
	Offline bool
	Err     error
}

// PushResult: итог отправки неотправленных записей.
type PushResult struct {
	Sent     int
	Marked   int
	Merged   int
	Rejected int // сервер не принял, записи остаются неотправленными
	Held     int // чужие неотправленные записи, их отправит владелец
}

type engineOptions struct {
	now              func() time.Time
	ownerFromSession bool
}

// Option настраивает Engine.
type Option func(*engineOptions)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) { o.now = now }
}

// WithOwnerFromSession проставляет владельца новых записей из сессии и
// разрешает правку только своих записей.
func WithOwnerFromSession() Option {
	return func(o *engineOptions) { o.ownerFromSession = true }
}

// Engine согласует локальную таблицу записей с сервером.
// Локальное изменение применяется всегда первым; недоступность сервера откладывает отправку.
type Engine[P model.Payload] struct {
	store   repo.Store[P]
	remote  Remote[P]
	hub     *observe.Hub[P]
	session *session.Session
	logger  *zap.SugaredLogger
	opts    engineOptions

	refresh singleflight.Group
	keys    keyLocker
	bg      sync.WaitGroup
}

// NewEngine собирает движок синхронизации для одного типа записей.
func NewEngine[P model.Payload](
	store repo.Store[P],
	remote Remote[P],
	hub *observe.Hub[P],
	sess *session.Session,
	logger *zap.SugaredLogger,
	opts ...Option,
) *Engine[P] {
	o := engineOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if sess == nil {
		sess = session.New(nil)
	}
	var zero P
	return &Engine[P]{
		store:   store,
		remote:  remote,
		hub:     hub,
		session: sess,
		logger:  logger.With("kind", zero.Kind()),
		opts:    o,
	}
}

// ObserveForOwner подписывает на записи владельца и один раз запускает фоновое обновление из сети.
func (e *Engine[P]) ObserveForOwner(ctx context.Context, ownerKey string) (*observe.Subscription[P], error) {
	return e.ObserveAll(ctx, query.ByOwner(ownerKey))
}

// ObserveAll подписывает на произвольную выборку и запускает фоновое обновление.
// Отмена подписки не прерывает уже запущенное обновление.
func (e *Engine[P]) ObserveAll(ctx context.Context, f query.Filter) (*observe.Subscription[P], error) {
	sub, err := e.hub.Subscribe(ctx, f)
	if err != nil {
		return nil, unknown("", "subscribe", err)
	}
	e.refreshAsync(ctx, f.OwnerKey)
	return sub, nil
}

// Wait ждёт завершения фоновых обновлений.
func (e *Engine[P]) Wait() { e.bg.Wait() }

func (e *Engine[P]) refreshAsync(ctx context.Context, ownerKey string) {
	ctx = context.WithoutCancel(ctx)
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		e.Refresh(ctx, ownerKey)
	}()
}

// Refresh: RefreshFromRemote, но одновременные вызовы с одной областью схлопываются в один запрос.
func (e *Engine[P]) Refresh(ctx context.Context, ownerKey string) RefreshResult {
	scope := "all"
	if ownerKey != "" {
		scope = "owner:" + ownerKey
	}
	v, _, _ := e.refresh.Do(scope, func() (any, error) {
		return e.RefreshFromRemote(ctx, ownerKey), nil
	})
	return v.(RefreshResult)
}

// RefreshFromRemote забирает записи с сервера и кладёт их как synced=true,
// кроме ключей с локальными неотправленными изменениями. Ошибки не возвращаются.
func (e *Engine[P]) RefreshFromRemote(ctx context.Context, ownerKey string) RefreshResult {
	recs, err := e.remote.FetchAll(ctx, ownerKey)
	if err != nil {
		e.logger.Warnw("refresh: server unavailable, using local data", "owner", ownerKey, "error", err)
		return RefreshResult{Offline: true, Err: err}
	}
	if ownerKey != "" {
		recs = filterOwner(recs, ownerKey)
	}
	applied, err := e.store.MergeRemote(ctx, recs)
	if err != nil {
		e.logger.Errorw("refresh: merge failed", "error", err)
		return RefreshResult{Fetched: len(recs), Err: err}
	}
	res := RefreshResult{Fetched: len(recs), Applied: len(applied), Skipped: len(recs) - len(applied)}
	e.logger.Debugw("refresh: done", "owner", ownerKey, "fetched", res.Fetched, "applied", res.Applied)
	return res
}

func filterOwner[P model.Payload](recs []model.Record[P], ownerKey string) []model.Record[P] {
	out := recs[:0:0]
	for _, r := range recs {
		if r.OwnerKey == ownerKey {
			out = append(out, r)
		}
	}
	return out
}

// Snapshot возвращает текущую выборку из локальной таблицы.
func (e *Engine[P]) Snapshot(ctx context.Context, f query.Filter) ([]model.Record[P], error) {
	rows, err := e.store.All(ctx)
	if err != nil {
		return nil, unknown("", "load", err)
	}
	return query.Apply(rows, f), nil
}

// Get возвращает видимую (не удалённую) запись по ключу.
func (e *Engine[P]) Get(ctx context.Context, key string) (model.Record[P], error) {
	rec, found, err := e.lookup(ctx, key)
	if err != nil {
		return rec, unknown(key, "load", err)
	}
	if !found || rec.Deleted {
		return model.Record[P]{}, notFound(key)
	}
	return rec, nil
}

// Pending возвращает число неотправленных записей.
func (e *Engine[P]) Pending(ctx context.Context) (int, error) {
	rows, err := e.store.Unsynced(ctx)
	if err != nil {
		return 0, unknown("", "load", err)
	}
	return len(rows), nil
}

func (e *Engine[P]) lookup(ctx context.Context, key string) (model.Record[P], bool, error) {
	rec, err := e.store.Get(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Record[P]{}, false, nil
	}
	if err != nil {
		return model.Record[P]{}, false, err
	}
	return rec, true, nil
}

// Create сохраняет новую запись локально (synced=false) и отправляет её на сервер.
// Сервер недоступен: ErrPendingOffline, запись остаётся локально.
// Сервер отклонил: ErrRemoteRejected, локальная запись откатывается.
// Уже существующий ключ, даже мягко удалённый: ErrRemoteRejected без изменений.
func (e *Engine[P]) Create(ctx context.Context, rec model.Record[P]) (model.Record[P], error) {
	if rec.Key == "" {
		rec.Key = uuid.NewString()
	}
	if e.opts.ownerFromSession && rec.OwnerKey == "" {
		st, err := e.session.Require()
		if err != nil {
			return rec, unknown(rec.Key, "create", err)
		}
		rec.OwnerKey = st.UserKey
	}
	if err := rec.Payload.Validate(); err != nil {
		return rec, rejected(rec.Key, err)
	}

	unlock := e.keys.Lock(rec.Key)
	defer unlock()

	_, exists, err := e.lookup(ctx, rec.Key)
	if err != nil {
		return rec, unknown(rec.Key, "load", err)
	}
	if exists {
		// в том числе мягко удалённая: ключ не переиспользуется
		return rec, rejected(rec.Key, fmt.Errorf("%w: key already exists", model.ErrInvalid))
	}
	rec.Touch(e.opts.now())
	rec.Deleted = false
	rec.Synced = false
	if err := e.store.Upsert(ctx, rec); err != nil {
		return rec, unknown(rec.Key, "save", err)
	}
	return e.propagate(ctx, rec, model.Record[P]{}, false, func(ctx context.Context) error {
		return e.remote.Create(ctx, rec)
	})
}

// Update перезаписывает существующую запись; владелец и ключ не меняются.
func (e *Engine[P]) Update(ctx context.Context, rec model.Record[P]) (model.Record[P], error) {
	if rec.Key == "" {
		return rec, notFound("")
	}
	if err := rec.Payload.Validate(); err != nil {
		return rec, rejected(rec.Key, err)
	}

	unlock := e.keys.Lock(rec.Key)
	defer unlock()

	prev, found, err := e.lookup(ctx, rec.Key)
	if err != nil {
		return rec, unknown(rec.Key, "load", err)
	}
	if !found || prev.Deleted || !e.ownedByCaller(prev) {
		return rec, notFound(rec.Key)
	}
	rec.OwnerKey = prev.OwnerKey
	rec.ModifiedAt = prev.ModifiedAt
	rec.Touch(e.opts.now())
	rec.Deleted = false
	rec.Synced = false
	if err := e.store.Upsert(ctx, rec); err != nil {
		return rec, unknown(rec.Key, "save", err)
	}
	return e.propagate(ctx, rec, prev, true, func(ctx context.Context) error {
		return e.remote.Update(ctx, rec.Key, rec)
	})
}

func (e *Engine[P]) ownedByCaller(rec model.Record[P]) bool {
	if !e.opts.ownerFromSession {
		return true
	}
	uk := e.session.UserKey()
	return uk == "" || rec.OwnerKey == uk
}

// propagate отправляет уже сохранённое локально изменение и фиксирует исход.
func (e *Engine[P]) propagate(
	ctx context.Context,
	rec, prev model.Record[P],
	hadPrev bool,
	call func(context.Context) error,
) (model.Record[P], error) {
	err := call(ctx)
	switch {
	case err == nil:
		if _, err := e.store.MarkSynced(ctx, []model.Stamp{rec.Stamp()}); err != nil {
			return rec, unknown(rec.Key, "mark synced", err)
		}
		rec.Synced = true
		return rec, nil
	case api.IsRejected(err):
		var rbErr error
		if hadPrev {
			rbErr = e.store.Upsert(ctx, prev)
		} else {
			rbErr = e.store.Remove(ctx, rec.Key)
		}
		if rbErr != nil {
			e.logger.Errorw("rollback failed", "key", rec.Key, "error", rbErr)
		}
		e.logger.Infow("server rejected change", "key", rec.Key, "error", err)
		return prev, rejected(rec.Key, err)
	default:
		e.logger.Warnw("server unavailable, change kept locally", "key", rec.Key, "error", err)
		return rec, pendingOffline(rec.Key, err)
	}
}

// SoftDelete помечает запись удалённой (deleted=true) и отправляет это на сервер обычным обновлением.
// ownerKey, если задан, должен совпадать с владельцем записи.
func (e *Engine[P]) SoftDelete(ctx context.Context, key, ownerKey string) error {
	unlock := e.keys.Lock(key)
	defer unlock()

	prev, found, err := e.lookup(ctx, key)
	if err != nil {
		return unknown(key, "load", err)
	}
	if !found || prev.Deleted || (ownerKey != "" && prev.OwnerKey != ownerKey) {
		return notFound(key)
	}

	rec := prev
	rec.Deleted = true
	rec.Synced = false
	rec.Touch(e.opts.now())

	err = e.remote.Update(ctx, key, rec)
	switch {
	case err == nil:
		rec.Synced = true
		if err := e.store.Upsert(ctx, rec); err != nil {
			return unknown(key, "save", err)
		}
		return nil
	case api.IsRejected(err):
		e.logger.Infow("server rejected delete", "key", key, "error", err)
		return rejected(key, err)
	default:
		if err := e.store.Upsert(ctx, rec); err != nil {
			return unknown(key, "save", err)
		}
		e.logger.Warnw("server unavailable, delete kept locally", "key", key, "error", err)
		return pendingOffline(key, err)
	}
}

// PushPending отправляет неотправленные записи пачкой. Принятые сервером версии помечаются synced,
// если не изменились за время запроса; ответ сервера вливается как при обычном обновлении.
// Записи, которые сервер не принял, остаются неотправленными, а вызов возвращает ErrRemoteRejected.
// Чужие записи не отправляются. Без неотправленных записей сервер не вызывается.
func (e *Engine[P]) PushPending(ctx context.Context) (PushResult, error) {
	all, err := e.store.Unsynced(ctx)
	if err != nil {
		return PushResult{}, unknown("", "load pending", err)
	}
	var res PushResult
	pending := all[:0:0]
	for _, rec := range all {
		if !e.ownedByCaller(rec) {
			res.Held++
			continue
		}
		pending = append(pending, rec)
	}
	if len(pending) == 0 {
		return res, nil
	}
	res.Sent = len(pending)

	batch, err := e.remote.BulkSync(ctx, pending)
	if err != nil {
		if api.IsRejected(err) {
			e.logger.Errorw("push: server rejected batch", "count", len(pending), "error", err)
			return res, rejected("", err)
		}
		e.logger.Warnw("push: server unavailable", "count", len(pending), "error", err)
		return res, pendingOffline("", err)
	}

	refused := make(map[string]bool, len(batch.Rejected))
	for _, k := range batch.Rejected {
		refused[k] = true
	}
	accepted := make([]model.Stamp, 0, len(pending))
	for _, rec := range pending {
		if refused[rec.Key] {
			res.Rejected++
			continue
		}
		accepted = append(accepted, rec.Stamp())
	}
	res.Marked, err = e.store.MarkSynced(ctx, accepted)
	if err != nil {
		return res, unknown("", "mark synced", err)
	}
	incoming := make([]model.Record[P], 0, len(batch.Updates)+len(batch.ServerRecords))
	incoming = append(incoming, batch.Updates...)
	incoming = append(incoming, batch.ServerRecords...)
	merged, err := e.store.MergeRemote(ctx, incoming)
	if err != nil {
		return res, unknown("", "merge", err)
	}
	res.Merged = len(merged)
	e.logger.Infow("push: done", "sent", res.Sent, "marked", res.Marked, "merged", res.Merged, "rejected", res.Rejected)
	if res.Rejected > 0 {
		return res, rejected("", fmt.Errorf("server refused %d of %d records: %v", res.Rejected, res.Sent, batch.Rejected))
	}
	return res, nil
}

// PushPendingWithRetry повторяет PushPending, пока сервер недоступен и backoff позволяет.
func (e *Engine[P]) PushPendingWithRetry(ctx context.Context, b retry.Backoff) (PushResult, error) {
	var res PushResult
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		r, err := e.PushPending(ctx)
		res = r
		if IsAdvisory(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return res, err
}

// Resend повторно отправляет одну неотправленную запись через create (сервер принимает его идемпотентно).
func (e *Engine[P]) Resend(ctx context.Context, key string) error {
	unlock := e.keys.Lock(key)
	defer unlock()

	rec, found, err := e.lookup(ctx, key)
	if err != nil {
		return unknown(key, "load", err)
	}
	if !found {
		return notFound(key)
	}
	if rec.Synced {
		return nil
	}
	if err := e.remote.Create(ctx, rec); err != nil {
		if api.IsRejected(err) {
			return rejected(key, err)
		}
		return pendingOffline(key, err)
	}
	if _, err := e.store.MarkSynced(ctx, []model.Stamp{rec.Stamp()}); err != nil {
		return unknown(key, "mark synced", err)
	}
	return nil
}
