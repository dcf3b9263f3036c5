package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/repo"

	"github.com/jmoiron/sqlx"
)

// Table: локальная таблица записей одного типа поверх SQLite.
type Table[P model.Payload] struct {
	db   *sqlx.DB
	name string

	mu       sync.RWMutex
	onChange []repo.ChangeFunc
}

var (
	_ repo.Store[model.Listing] = (*Table[model.Listing])(nil)
	_ repo.Store[model.User]    = (*Table[model.User])(nil)
)

// NewListings возвращает таблицу публикаций.
func NewListings(db *sqlx.DB) *Table[model.Listing] {
	return &Table[model.Listing]{db: db, name: "listings"}
}

// NewUsers возвращает таблицу пользователей.
func NewUsers(db *sqlx.DB) *Table[model.User] {
	return &Table[model.User]{db: db, name: "users"}
}

// OnChange подписывает fn на изменения таблицы. fn вызывается после commit.
func (t *Table[P]) OnChange(fn repo.ChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

func (t *Table[P]) notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	t.mu.RLock()
	fns := append([]repo.ChangeFunc(nil), t.onChange...)
	t.mu.RUnlock()
	for _, fn := range fns {
		fn(append([]string(nil), keys...))
	}
}

type row struct {
	ID         string `db:"id"`
	OwnerKey   string `db:"owner_key"`
	Category   string `db:"category"`
	Payload    string `db:"payload"`
	ModifiedAt int64  `db:"modified_at"`
	Deleted    bool   `db:"deleted"`
	Synced     bool   `db:"synced"`
}

func toRow[P model.Payload](rec model.Record[P]) (row, error) {
	if rec.Key == "" {
		return row{}, errors.New("empty record key")
	}
	b, err := json.Marshal(rec.Payload)
	if err != nil {
		return row{}, fmt.Errorf("encode payload: %w", err)
	}
	return row{
		ID:         rec.Key,
		OwnerKey:   rec.OwnerKey,
		Category:   rec.Payload.Facet(),
		Payload:    string(b),
		ModifiedAt: rec.ModifiedAt,
		Deleted:    rec.Deleted,
		Synced:     rec.Synced,
	}, nil
}

func fromRow[P model.Payload](r row) (model.Record[P], error) {
	var p P
	if err := json.Unmarshal([]byte(r.Payload), &p); err != nil {
		return model.Record[P]{}, fmt.Errorf("decode payload of %s: %w", r.ID, err)
	}
	return model.Record[P]{
		Key:        r.ID,
		OwnerKey:   r.OwnerKey,
		Payload:    p,
		ModifiedAt: r.ModifiedAt,
		Deleted:    r.Deleted,
		Synced:     r.Synced,
	}, nil
}

const columns = `id, owner_key, category, payload, modified_at, deleted, synced`

func (t *Table[P]) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (%s)
        VALUES (:id, :owner_key, :category, :payload, :modified_at, :deleted, :synced)
        ON CONFLICT(id) DO UPDATE SET
            owner_key = excluded.owner_key,
            category = excluded.category,
            payload = excluded.payload,
            modified_at = excluded.modified_at,
            deleted = excluded.deleted,
            synced = excluded.synced`, t.name, columns)
}

// mergeSQL: тот же upsert, но строка с synced=0 не перезаписывается.
func (t *Table[P]) mergeSQL() string {
	return t.upsertSQL() + fmt.Sprintf(` WHERE %s.synced = 1`, t.name)
}

// Upsert вставляет или перезаписывает запись.
func (t *Table[P]) Upsert(ctx context.Context, rec model.Record[P]) error {
	return t.UpsertMany(ctx, []model.Record[P]{rec})
}

// UpsertMany пишет набор записей в одной транзакции.
func (t *Table[P]) UpsertMany(ctx context.Context, recs []model.Record[P]) error {
	if len(recs) == 0 {
		return nil
	}
	keys, err := t.execNamed(ctx, t.upsertSQL(), recs, nil)
	if err != nil {
		return err
	}
	t.notify(keys)
	return nil
}

// MergeRemote применяет серверные копии, не трогая строки с локальными изменениями.
func (t *Table[P]) MergeRemote(ctx context.Context, recs []model.Record[P]) ([]string, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	applied, err := t.execNamed(ctx, t.mergeSQL(), recs, func(r *row) { r.Synced = true })
	if err != nil {
		return nil, err
	}
	t.notify(applied)
	return applied, nil
}

// execNamed выполняет именованный запрос для каждой записи в транзакции
// и возвращает ключи строк, которые реально изменились.
func (t *Table[P]) execNamed(ctx context.Context, q string, recs []model.Record[P], prep func(*row)) ([]string, error) {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		// в случае ошибки или некоммита: откат
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareNamedContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	changed := make([]string, 0, len(recs))
	for _, rec := range recs {
		r, err := toRow(rec)
		if err != nil {
			return nil, err
		}
		if prep != nil {
			prep(&r)
		}
		res, err := stmt.ExecContext(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("%s upsert %s: %w", t.name, r.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed = append(changed, r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return changed, nil
}

// Get возвращает запись по ключу.
func (t *Table[P]) Get(ctx context.Context, key string) (model.Record[P], error) {
	var r row
	err := t.db.GetContext(ctx, &r, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, columns, t.name), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Record[P]{}, fmt.Errorf("%s %q: %w", t.name, key, repo.ErrNotFound)
		}
		return model.Record[P]{}, err
	}
	return fromRow[P](r)
}

// All возвращает все строки, отсортированные по modified_at DESC.
func (t *Table[P]) All(ctx context.Context) ([]model.Record[P], error) {
	return t.selectRows(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY modified_at DESC, id ASC`, columns, t.name))
}

// Unsynced возвращает неотправленные строки, старые первыми.
func (t *Table[P]) Unsynced(ctx context.Context) ([]model.Record[P], error) {
	return t.selectRows(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE synced = 0 ORDER BY modified_at ASC, id ASC`, columns, t.name))
}

func (t *Table[P]) selectRows(ctx context.Context, q string, args ...any) ([]model.Record[P], error) {
	var rows []row
	if err := t.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.Record[P], 0, len(rows))
	for _, r := range rows {
		rec, err := fromRow[P](r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkSynced отмечает отправленные версии. Строка, изменённая после чтения, остаётся несинхронизированной.
func (t *Table[P]) MarkSynced(ctx context.Context, stamps []model.Stamp) (int, error) {
	if len(stamps) == 0 {
		return 0, nil
	}
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`UPDATE %s SET synced = 1 WHERE id = ? AND modified_at = ? AND synced = 0`, t.name)
	marked := make([]string, 0, len(stamps))
	for _, s := range stamps {
		res, err := tx.ExecContext(ctx, q, s.Key, s.ModifiedAt)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			marked = append(marked, s.Key)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	t.notify(marked)
	return len(marked), nil
}

// Remove удаляет строку физически.
func (t *Table[P]) Remove(ctx context.Context, key string) error {
	res, err := t.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.name), key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		t.notify([]string{key})
	}
	return nil
}
