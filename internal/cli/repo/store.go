package repo

import (
	"context"
	"errors"

	"Tianguis/internal/cli/model"
)

// ErrNotFound: записи с таким ключом нет в локальном хранилище.
var ErrNotFound = errors.New("record not found")

// Store определяет порт доступа к локальной таблице записей одного типа.
type Store[P model.Payload] interface {
	// Upsert вставляет или полностью перезаписывает запись по ключу.
	Upsert(ctx context.Context, rec model.Record[P]) error

	// UpsertMany делает Upsert набора записей в одной транзакции.
	UpsertMany(ctx context.Context, recs []model.Record[P]) error

	// Get возвращает запись по ключу (включая удалённые) или ErrNotFound.
	Get(ctx context.Context, key string) (model.Record[P], error)

	// All возвращает все строки таблицы, включая удалённые.
	All(ctx context.Context) ([]model.Record[P], error)

	// Unsynced возвращает строки с synced=false.
	Unsynced(ctx context.Context) ([]model.Record[P], error)

	// MarkSynced ставит synced=true только тем строкам, чья версия совпадает со stamp.
	// Возвращает число отмеченных строк.
	MarkSynced(ctx context.Context, stamps []model.Stamp) (int, error)

	// MergeRemote записывает серверные копии как synced=true,
	// пропуская ключи с локальными неотправленными изменениями. Возвращает применённые ключи.
	MergeRemote(ctx context.Context, recs []model.Record[P]) ([]string, error)

	// Remove физически удаляет строку (откат создания, отклонённого сервером).
	Remove(ctx context.Context, key string) error
}

// ChangeFunc вызывается после каждой зафиксированной записи с изменёнными ключами.
type ChangeFunc func(keys []string)

// SessionStore описывает хранилище сессии CLI между запусками.
type SessionStore interface {
	Save(st model.SessionState) error
	Load() (model.SessionState, error)
	Clear() error
}
