package model

import (
	"errors"
	"time"
)

// ErrInvalid: запись не прошла валидацию полей.
var ErrInvalid = errors.New("invalid record")

// Payload: типоспецифичная часть записи (Listing, User).
type Payload interface {
	// Kind возвращает имя типа записи, например "listing".
	Kind() string
	// Facet возвращает значение категории для фильтрации (пусто, если у типа нет категорий).
	Facet() string
	// Terms возвращает поля, по которым идёт полнотекстовый поиск.
	Terms() []string
	// Validate проверяет поля перед сохранением.
	Validate() error
}

// Record: конверт синхронизации вокруг полезной нагрузки.
type Record[P Payload] struct {
	Key        string `json:"key"`
	OwnerKey   string `json:"owner_key,omitempty"`
	Payload    P      `json:"payload"`
	ModifiedAt int64  `json:"modified_at"` // epoch millis
	Deleted    bool   `json:"deleted"`
	Synced     bool   `json:"synced"`
}

// Touch продвигает ModifiedAt: строго больше предыдущего значения, даже если часы отстают.
func (r *Record[P]) Touch(now time.Time) {
	ms := now.UnixMilli()
	if ms <= r.ModifiedAt {
		ms = r.ModifiedAt + 1
	}
	r.ModifiedAt = ms
}

// Stamp возвращает пару key/modified_at, по которой подтверждается синхронизация.
func (r Record[P]) Stamp() Stamp {
	return Stamp{Key: r.Key, ModifiedAt: r.ModifiedAt}
}

// Stamp идентифицирует конкретную версию записи.
type Stamp struct {
	Key        string
	ModifiedAt int64
}

// Stamps собирает версии набора записей.
func Stamps[P Payload](recs []Record[P]) []Stamp {
	out := make([]Stamp, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Stamp())
	}
	return out
}

// SyncBatch: ответ bulk-синхронизации.
// Updates: записи, у которых серверная версия новее присланной;
// ServerRecords: актуальный набор записей вызывающего после слияния;
// Rejected: ключи, которые сервер не принял и копии которых у него нет.
type SyncBatch[P Payload] struct {
	ServerRecords []Record[P] `json:"server_records"`
	Updates       []Record[P] `json:"updates"`
	Rejected      []string    `json:"rejected,omitempty"`
}
