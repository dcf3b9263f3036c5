package api

import (
	"context"
	"net/http"
	"net/url"

	"Tianguis/internal/cli/model"
)

// Resource: REST-коллекция записей одного типа.
type Resource[P model.Payload] struct {
	c          *Client
	base       string
	createPath string
}

// Listings: /api/posts.
func Listings(c *Client) *Resource[model.Listing] {
	return &Resource[model.Listing]{c: c, base: "/api/posts", createPath: "/api/posts"}
}

// Users: /api/users; создание идёт через регистрацию.
func Users(c *Client) *Resource[model.User] {
	return &Resource[model.User]{c: c, base: "/api/users", createPath: "/api/register"}
}

// FetchAll получает все записи; ownerKey сужает выборку до одного владельца.
func (r *Resource[P]) FetchAll(ctx context.Context, ownerKey string) ([]model.Record[P], error) {
	path := r.base
	if ownerKey != "" {
		path += "?owner=" + url.QueryEscape(ownerKey)
	}
	var out []model.Record[P]
	if err := r.c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create отправляет новую запись.
func (r *Resource[P]) Create(ctx context.Context, rec model.Record[P]) error {
	return r.c.doJSON(ctx, http.MethodPost, r.createPath, rec, nil)
}

// Update перезаписывает запись по ключу (в том числе мягкое удаление).
func (r *Resource[P]) Update(ctx context.Context, key string, rec model.Record[P]) error {
	return r.c.doJSON(ctx, http.MethodPut, r.base+"/"+url.PathEscape(key), rec, nil)
}

type bulkRequest[P model.Payload] struct {
	Records []model.Record[P] `json:"records"`
}

// BulkSync отправляет пачку неотправленных записей.
func (r *Resource[P]) BulkSync(ctx context.Context, recs []model.Record[P]) (model.SyncBatch[P], error) {
	var out model.SyncBatch[P]
	err := r.c.doJSON(ctx, http.MethodPost, r.base+"/sync", bulkRequest[P]{Records: recs}, &out)
	return out, err
}
