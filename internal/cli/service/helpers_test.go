package service

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"
	"time"

	"Tianguis/internal/cli/api"
	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/observe"
	reposqlite "Tianguis/internal/cli/repo/sqlite"
	"Tianguis/internal/cli/session"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockRemote: мок серверной коллекции.
type mockRemote[P model.Payload] struct{ mock.Mock }

func (m *mockRemote[P]) FetchAll(ctx context.Context, ownerKey string) ([]model.Record[P], error) {
	args := m.Called(ctx, ownerKey)
	if v, ok := args.Get(0).([]model.Record[P]); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRemote[P]) Create(ctx context.Context, rec model.Record[P]) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockRemote[P]) Update(ctx context.Context, key string, rec model.Record[P]) error {
	return m.Called(ctx, key, rec).Error(0)
}

func (m *mockRemote[P]) BulkSync(ctx context.Context, recs []model.Record[P]) (model.SyncBatch[P], error) {
	args := m.Called(ctx, recs)
	if v, ok := args.Get(0).(model.SyncBatch[P]); ok {
		return v, args.Error(1)
	}
	return model.SyncBatch[P]{}, args.Error(1)
}

var (
	errOffline  = api.ErrUnavailable
	errRejected = &api.RejectedError{Status: 422, Message: "nope"}
)

type fixture struct {
	store   *reposqlite.Table[model.Listing]
	remote  *mockRemote[model.Listing]
	hub     *observe.Hub[model.Listing]
	session *session.Session
	engine  *Engine[model.Listing]
	clock   *time.Time
}

// newFixture собирает движок публикаций поверх настоящей SQLite во временном каталоге.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := reposqlite.Open(context.Background(), filepath.Join(t.TempDir(), "client.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := reposqlite.NewListings(db)
	hub := observe.NewHub(store.All, nil)
	store.OnChange(hub.Notify)

	sess := session.New(nil)
	require.NoError(t, sess.Begin(model.SessionState{UserKey: "u1", Username: "ana", Token: "tok"}))

	now := time.UnixMilli(100)
	f := &fixture{store: store, remote: new(mockRemote[model.Listing]), hub: hub, session: sess, clock: &now}
	f.engine = NewEngine[model.Listing](store, f.remote, hub, sess, nil,
		WithOwnerFromSession(),
		WithClock(func() time.Time { return *f.clock }),
	)
	t.Cleanup(f.engine.Wait)
	return f
}

func (f *fixture) at(ms int64) { *f.clock = time.UnixMilli(ms) }

func (f *fixture) get(t *testing.T, key string) model.Record[model.Listing] {
	t.Helper()
	rec, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return rec
}

func tacos() model.Listing {
	return model.Listing{
		Name:        "Tacos",
		Category:    "Comida",
		Description: "Tacos al pastor",
		Location:    "Mercado",
		Price:       15,
		Image:       base64.StdEncoding.EncodeToString([]byte("img")),
	}
}

func serverCopy(key, owner string, at int64, name string) model.Record[model.Listing] {
	p := tacos()
	p.Name = name
	return model.Record[model.Listing]{Key: key, OwnerKey: owner, ModifiedAt: at, Payload: p}
}
