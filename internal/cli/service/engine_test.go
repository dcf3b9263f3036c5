package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/query"

	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEngine_Create_Online(t *testing.T) {
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.MatchedBy(func(r model.Record[model.Listing]) bool {
		return r.Key != "" && r.OwnerKey == "u1" && !r.Synced && r.ModifiedAt == 100
	})).Return(nil).Once()

	rec, err := f.engine.Create(context.Background(), model.Record[model.Listing]{Payload: tacos()})
	require.NoError(t, err)
	assert.True(t, rec.Synced)
	assert.NotEmpty(t, rec.Key)

	stored := f.get(t, rec.Key)
	assert.True(t, stored.Synced)
	assert.Equal(t, "u1", stored.OwnerKey)
	assert.Equal(t, int64(100), stored.ModifiedAt)
	f.remote.AssertExpectations(t)
}

func TestEngine_Create_OfflineKeepsLocalCopy(t *testing.T) {
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()

	rec, err := f.engine.Create(context.Background(), model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPendingOffline)
	assert.True(t, IsAdvisory(err))
	assert.Contains(t, err.Error(), PendingMessage)
	assert.False(t, rec.Synced)

	stored := f.get(t, "a1")
	assert.False(t, stored.Synced)
	assert.Equal(t, "Tacos", stored.Payload.Name)
}

func TestEngine_Create_RejectedRollsBack(t *testing.T) {
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errRejected).Once()

	_, err := f.engine.Create(context.Background(), model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.False(t, IsAdvisory(err))

	_, err = f.engine.Get(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEngine_Create_InvalidPayloadNeverTouchesStoreOrServer(t *testing.T) {
	f := newFixture(t)
	p := tacos()
	p.Name = ""

	_, err := f.engine.Create(context.Background(), model.Record[model.Listing]{Key: "bad", Payload: p})
	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.ErrorIs(t, err, model.ErrInvalid)

	_, err = f.engine.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrNotFound)
	f.remote.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEngine_Create_RequiresSessionForOwner(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.End())

	_, err := f.engine.Create(context.Background(), model.Record[model.Listing]{Payload: tacos()})
	kind, _ := KindOf(err)
	assert.Equal(t, KindUnknown, kind)
}

func TestEngine_Create_ExistingKeyIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(nil).Once()
	_, err := f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	require.NoError(t, err)

	again := tacos()
	again.Name = "Overwrite"
	_, err = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: again})
	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.Equal(t, "Tacos", f.get(t, "a1").Payload.Name)

	// мягко удалённая запись не воскресает
	f.at(200)
	require.NoError(t, f.engine.SoftDelete(ctx, "a1", "u1"))
	_, err = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: again})
	assert.ErrorIs(t, err, ErrRemoteRejected)
	stored := f.get(t, "a1")
	assert.True(t, stored.Deleted)
	assert.True(t, stored.Synced)
	f.remote.AssertExpectations(t)
}

func TestEngine_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	rec, err := f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	require.NoError(t, err)

	t.Run("online bumps modifiedAt and keeps owner", func(t *testing.T) {
		f.at(100) // часы не сдвинулись
		upd := rec
		upd.OwnerKey = "someone-else"
		upd.Payload.Price = 20
		f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(nil).Once()

		got, err := f.engine.Update(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, int64(101), got.ModifiedAt)
		assert.Equal(t, "u1", got.OwnerKey)

		stored := f.get(t, "a1")
		assert.True(t, stored.Synced)
		assert.Equal(t, 20.0, stored.Payload.Price)
	})

	t.Run("offline keeps edit pending", func(t *testing.T) {
		f.at(500)
		upd := f.get(t, "a1")
		upd.Payload.Price = 30
		f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(errOffline).Once()

		_, err := f.engine.Update(ctx, upd)
		assert.ErrorIs(t, err, ErrPendingOffline)
		stored := f.get(t, "a1")
		assert.False(t, stored.Synced)
		assert.Equal(t, 30.0, stored.Payload.Price)
		assert.Equal(t, int64(500), stored.ModifiedAt)
	})

	t.Run("rejected restores previous copy", func(t *testing.T) {
		f.at(600)
		before := f.get(t, "a1")
		upd := before
		upd.Payload.Price = 99
		f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(errRejected).Once()

		_, err := f.engine.Update(ctx, upd)
		assert.ErrorIs(t, err, ErrRemoteRejected)
		assert.Equal(t, before, f.get(t, "a1"))
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := f.engine.Update(ctx, model.Record[model.Listing]{Key: "nope", Payload: tacos()})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.engine.Update(ctx, model.Record[model.Listing]{Payload: tacos()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	f.remote.AssertExpectations(t)
}

func TestEngine_Update_ForeignListingIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.MergeRemote(ctx, []model.Record[model.Listing]{serverCopy("x", "u2", 50, "Ajeno")})
	require.NoError(t, err)

	_, err = f.engine.Update(ctx, serverCopy("x", "u2", 50, "Mío"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Ajeno", f.get(t, "x").Payload.Name)
}

func TestEngine_SoftDelete(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *fixture {
		f := newFixture(t)
		_, err := f.store.MergeRemote(ctx, []model.Record[model.Listing]{
			serverCopy("a1", "u1", 50, "Tacos"),
			serverCopy("b1", "u2", 60, "Tamales"),
		})
		require.NoError(t, err)
		f.at(200)
		return f
	}

	assertHidden := func(t *testing.T, f *fixture, key string) {
		t.Helper()
		for _, flt := range []query.Filter{{}, query.ByCategory("Comida"), query.ByOwner("u1"), query.BySearchTerm("tacos"), query.ByCategory(query.AllCategories)} {
			rows, err := f.engine.Snapshot(ctx, flt)
			require.NoError(t, err)
			for _, r := range rows {
				assert.NotEqual(t, key, r.Key, "filter %+v", flt)
			}
		}
	}

	t.Run("online", func(t *testing.T) {
		f := seed(t)
		f.remote.On("Update", mock.Anything, "a1", mock.MatchedBy(func(r model.Record[model.Listing]) bool {
			return r.Deleted && r.ModifiedAt == 200
		})).Return(nil).Once()

		require.NoError(t, f.engine.SoftDelete(ctx, "a1", "u1"))
		stored := f.get(t, "a1")
		assert.True(t, stored.Deleted)
		assert.True(t, stored.Synced)
		assertHidden(t, f, "a1")
		f.remote.AssertExpectations(t)
	})

	t.Run("offline still hides the row", func(t *testing.T) {
		f := seed(t)
		f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(errOffline).Once()

		err := f.engine.SoftDelete(ctx, "a1", "u1")
		assert.ErrorIs(t, err, ErrPendingOffline)
		stored := f.get(t, "a1")
		assert.True(t, stored.Deleted)
		assert.False(t, stored.Synced)
		assertHidden(t, f, "a1")

		pending, err := f.engine.Pending(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, pending)
	})

	t.Run("rejected leaves the row untouched", func(t *testing.T) {
		f := seed(t)
		before := f.get(t, "a1")
		f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(errRejected).Once()

		assert.ErrorIs(t, f.engine.SoftDelete(ctx, "a1", "u1"), ErrRemoteRejected)
		assert.Equal(t, before, f.get(t, "a1"))
	})

	t.Run("not found", func(t *testing.T) {
		f := seed(t)
		assert.ErrorIs(t, f.engine.SoftDelete(ctx, "missing", "u1"), ErrNotFound)
		assert.ErrorIs(t, f.engine.SoftDelete(ctx, "b1", "u1"), ErrNotFound, "someone else's listing")

		f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(nil).Once()
		require.NoError(t, f.engine.SoftDelete(ctx, "a1", ""))
		assert.ErrorIs(t, f.engine.SoftDelete(ctx, "a1", ""), ErrNotFound, "already deleted")
		f.remote.AssertExpectations(t)
	})
}

func TestEngine_Refresh_PendingLocalRowWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	_, err := f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	require.ErrorIs(t, err, ErrPendingOffline)
	before := f.get(t, "a1")

	f.remote.On("FetchAll", mock.Anything, "").Return([]model.Record[model.Listing]{
		serverCopy("a1", "u1", 9999, "Server version"),
		serverCopy("c1", "u2", 10, "Elote"),
	}, nil).Once()

	res := f.engine.RefreshFromRemote(ctx, "")
	assert.Equal(t, RefreshResult{Fetched: 2, Applied: 1, Skipped: 1}, res)

	after := f.get(t, "a1")
	assert.Equal(t, before.Payload, after.Payload)
	assert.False(t, after.Synced)
	assert.True(t, f.get(t, "c1").Synced)
}

func TestEngine_Refresh_SwallowsErrors(t *testing.T) {
	f := newFixture(t)
	f.remote.On("FetchAll", mock.Anything, "").Return(nil, errOffline).Once()
	f.remote.On("FetchAll", mock.Anything, "u1").Return(nil, errRejected).Once()

	res := f.engine.RefreshFromRemote(context.Background(), "")
	assert.True(t, res.Offline)
	assert.Error(t, res.Err)

	res = f.engine.RefreshFromRemote(context.Background(), "u1")
	assert.True(t, res.Offline)
}

func TestEngine_Refresh_OwnerScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("FetchAll", mock.Anything, "u1").Return([]model.Record[model.Listing]{
		serverCopy("a1", "u1", 10, "Mine"),
		serverCopy("b1", "u2", 10, "Not mine"),
	}, nil).Once()

	res := f.engine.RefreshFromRemote(ctx, "u1")
	assert.Equal(t, 1, res.Applied)
	_, err := f.store.Get(ctx, "b1")
	assert.Error(t, err)
}

func TestEngine_PushPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Twice()
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	f.at(150)
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a2", Payload: tacos()})

	newer := serverCopy("z9", "u1", 300, "From another device")
	f.remote.On("BulkSync", mock.Anything, mock.MatchedBy(func(recs []model.Record[model.Listing]) bool {
		return len(recs) == 2 && recs[0].Key == "a1" && recs[1].Key == "a2"
	})).Return(model.SyncBatch[model.Listing]{
		ServerRecords: []model.Record[model.Listing]{newer},
	}, nil).Once()

	res, err := f.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, PushResult{Sent: 2, Marked: 2, Merged: 1}, res)
	assert.True(t, f.get(t, "a1").Synced)
	assert.True(t, f.get(t, "a2").Synced)
	assert.True(t, f.get(t, "z9").Synced)

	// повторный вызов: без обращения к серверу и без изменений
	before, err := f.store.All(ctx)
	require.NoError(t, err)
	res, err = f.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, PushResult{}, res)
	after, err := f.store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	f.remote.AssertExpectations(t)
}

func TestEngine_PushPending_ServerNewerCopyWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})

	f.remote.On("BulkSync", mock.Anything, mock.Anything).Return(model.SyncBatch[model.Listing]{
		Updates: []model.Record[model.Listing]{serverCopy("a1", "u1", 400, "Edited elsewhere")},
	}, nil).Once()

	_, err := f.engine.PushPending(ctx)
	require.NoError(t, err)
	stored := f.get(t, "a1")
	assert.Equal(t, "Edited elsewhere", stored.Payload.Name)
	assert.Equal(t, int64(400), stored.ModifiedAt)
	assert.True(t, stored.Synced)
}

func TestEngine_PushPending_EditDuringPushStaysPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	rec, _ := f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})

	f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(errOffline).Once()
	f.remote.On("BulkSync", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		// пока пачка в пути, пользователь правит запись
		f.at(700)
		upd := rec
		upd.Payload.Price = 77
		_, _ = f.engine.Update(ctx, upd)
	}).Return(model.SyncBatch[model.Listing]{}, nil).Once()

	res, err := f.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Marked)

	stored := f.get(t, "a1")
	assert.False(t, stored.Synced)
	assert.Equal(t, 77.0, stored.Payload.Price)
}

func TestEngine_PushPending_PartiallyAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Twice()
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	f.at(150)
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a2", Payload: tacos()})

	accepted := f.get(t, "a1")
	accepted.Synced = true
	f.remote.On("BulkSync", mock.Anything, mock.Anything).Return(model.SyncBatch[model.Listing]{
		ServerRecords: []model.Record[model.Listing]{accepted},
		Rejected:      []string{"a2"},
	}, nil).Once()

	res, err := f.engine.PushPending(ctx)
	assert.ErrorIs(t, err, ErrRemoteRejected)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Marked)
	assert.Equal(t, 1, res.Rejected)
	assert.True(t, f.get(t, "a1").Synced)
	assert.False(t, f.get(t, "a2").Synced, "refused record stays pending")

	n, err := f.engine.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	f.remote.AssertExpectations(t)
}

func TestEngine_PushPending_HoldsOtherUsersRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})

	// другой пользователь вошёл на том же устройстве
	require.NoError(t, f.session.Begin(model.SessionState{UserKey: "u2", Username: "bob", Token: "tok2"}))
	res, err := f.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, PushResult{Held: 1}, res)
	assert.False(t, f.get(t, "a1").Synced)
	f.remote.AssertNotCalled(t, "BulkSync", mock.Anything, mock.Anything)

	// владелец вернулся: запись уходит
	require.NoError(t, f.session.Begin(model.SessionState{UserKey: "u1", Username: "ana", Token: "tok"}))
	f.remote.On("BulkSync", mock.Anything, mock.MatchedBy(func(recs []model.Record[model.Listing]) bool {
		return len(recs) == 1 && recs[0].Key == "a1"
	})).Return(model.SyncBatch[model.Listing]{}, nil).Once()
	res, err = f.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Marked)
	assert.True(t, f.get(t, "a1").Synced)
}

func TestEngine_PushPending_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})

	f.remote.On("BulkSync", mock.Anything, mock.Anything).Return(nil, errOffline).Once()
	_, err := f.engine.PushPending(ctx)
	assert.ErrorIs(t, err, ErrPendingOffline)

	f.remote.On("BulkSync", mock.Anything, mock.Anything).Return(nil, errRejected).Once()
	_, err = f.engine.PushPending(ctx)
	assert.ErrorIs(t, err, ErrRemoteRejected)

	assert.False(t, f.get(t, "a1").Synced)
}

func TestEngine_PushPendingWithRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	_, _ = f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})

	f.remote.On("BulkSync", mock.Anything, mock.Anything).Return(nil, errOffline).Twice()
	f.remote.On("BulkSync", mock.Anything, mock.Anything).Return(model.SyncBatch[model.Listing]{}, nil).Once()

	b := retry.WithMaxRetries(5, retry.NewConstant(time.Millisecond))
	res, err := f.engine.PushPendingWithRetry(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Marked)
	f.remote.AssertExpectations(t)

	// сервер так и не поднялся
	f2 := newFixture(t)
	f2.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	_, _ = f2.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	f2.remote.On("BulkSync", mock.Anything, mock.Anything).Return(nil, errOffline).Times(3)
	_, err = f2.engine.PushPendingWithRetry(ctx, retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond)))
	assert.ErrorIs(t, err, ErrPendingOffline)
	f2.remote.AssertExpectations(t)
}

// Сценарий: создание без сети, устаревшая копия с сервера, досылка, затем свежая копия с сервера.
func TestEngine_OfflineCreateThenReconnectScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.remote.On("Create", mock.Anything, mock.Anything).Return(errOffline).Once()
	_, err := f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	require.ErrorIs(t, err, ErrPendingOffline)
	a1 := f.get(t, "a1")
	require.Equal(t, int64(100), a1.ModifiedAt)
	require.False(t, a1.Synced)

	// устаревшая серверная копия до досылки отбрасывается
	f.remote.On("FetchAll", mock.Anything, "").Return([]model.Record[model.Listing]{serverCopy("a1", "u1", 90, "Stale")}, nil).Once()
	f.engine.RefreshFromRemote(ctx, "")
	assert.Equal(t, a1, f.get(t, "a1"))

	f.remote.On("BulkSync", mock.Anything, mock.Anything).Return(model.SyncBatch[model.Listing]{}, nil).Once()
	_, err = f.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.True(t, f.get(t, "a1").Synced)

	// теперь локальная копия synced: более новая серверная версия принимается
	f.remote.On("FetchAll", mock.Anything, "").Return([]model.Record[model.Listing]{serverCopy("a1", "u1", 250, "Fresh")}, nil).Once()
	f.engine.RefreshFromRemote(ctx, "")
	got := f.get(t, "a1")
	assert.Equal(t, "Fresh", got.Payload.Name)
	assert.Equal(t, int64(250), got.ModifiedAt)
	assert.True(t, got.Synced)
	f.remote.AssertExpectations(t)
}

func TestEngine_ObserveForOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.MergeRemote(ctx, []model.Record[model.Listing]{serverCopy("old", "u1", 10, "Cached")})
	require.NoError(t, err)

	f.remote.On("FetchAll", mock.Anything, "u1").Return([]model.Record[model.Listing]{
		serverCopy("old", "u1", 10, "Cached"),
		serverCopy("new", "u1", 20, "Fresh"),
	}, nil).Once()

	sub, err := f.engine.ObserveForOwner(ctx, "u1")
	require.NoError(t, err)
	defer sub.Cancel()

	f.engine.Wait()

	// после обновления в канале лежит самый свежий снимок
	var last []model.Record[model.Listing]
	select {
	case last = <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("no snapshot after refresh")
	}
	require.Len(t, last, 2)
	assert.Equal(t, "new", last[0].Key)
	assert.Equal(t, "old", last[1].Key)
	f.remote.AssertExpectations(t)
}

func TestEngine_ObserveAll_CancelDoesNotStopRefresh(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	f.remote.On("FetchAll", mock.Anything, "").Run(func(args mock.Arguments) {
		close(started)
		<-release
	}).Return([]model.Record[model.Listing]{serverCopy("s1", "u2", 5, "Server")}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := f.engine.ObserveAll(ctx, query.ByCategory(query.AllCategories))
	require.NoError(t, err)
	<-started

	// ещё одна подписка, пока первый запрос в пути,: запрос не дублируется
	other, err := f.engine.ObserveAll(context.Background(), query.Filter{})
	require.NoError(t, err)
	defer other.Cancel()
	time.Sleep(50 * time.Millisecond)

	cancel()
	sub.Cancel()
	close(release)
	f.engine.Wait()

	assert.True(t, f.get(t, "s1").Synced, "refresh completed after cancellation")
	f.remote.AssertExpectations(t)
}

func TestEngine_SameKeyMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.at(1000)
	f.remote.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	rec, err := f.engine.Create(ctx, model.Record[model.Listing]{Key: "a1", Payload: tacos()})
	require.NoError(t, err)
	f.remote.On("Update", mock.Anything, "a1", mock.Anything).Return(errOffline)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Update(ctx, rec)
			assert.True(t, errors.Is(err, ErrPendingOffline))
		}()
	}
	wg.Wait()

	// часы стоят, поэтому каждая правка продвигает modified_at ровно на 1
	assert.Equal(t, int64(1000+n), f.get(t, "a1").ModifiedAt)
}

func TestSyncError_Matching(t *testing.T) {
	err := pendingOffline("k", errOffline)
	assert.ErrorIs(t, err, ErrPendingOffline)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, errOffline, "cause is reachable through Unwrap")

	kind, ok := KindOf(notFound("x"))
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
	_, ok = KindOf(nil)
	assert.False(t, ok)
	kind, _ = KindOf(errors.New("plain"))
	assert.Equal(t, KindUnknown, kind)
	assert.Contains(t, rejected("k", errRejected).Error(), "remote rejected [k]")
}
