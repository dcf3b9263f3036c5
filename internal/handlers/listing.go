package handlers

import (
	"net/http"

	cmodel "Tianguis/internal/cli/model"
	"Tianguis/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ListingHandler: объявления (posts).
type ListingHandler struct {
	ListingService *service.ListingService
	Logger         *zap.SugaredLogger
}

func NewListingHandler(listingService *service.ListingService, logger *zap.SugaredLogger) *ListingHandler {
	return &ListingHandler{ListingService: listingService, Logger: logger}
}

// List открыт без входа: объявления видят все. ?owner= сужает выборку.
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.ListingService.List(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, h.Logger, "Posts", err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, "")
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, chi.URLParam(r, "key"))
}

func (h *ListingHandler) save(w http.ResponseWriter, r *http.Request, pathKey string) {
	userKey, ok := requireUser(w, r)
	if !ok {
		return
	}
	var rec cmodel.Record[cmodel.Listing]
	if err := decodeJSON(r, &rec); err != nil || (pathKey != "" && rec.Key != pathKey) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.ListingService.Save(r.Context(), userKey, rec); err != nil {
		writeError(w, h.Logger, "SavePost", err)
		return
	}
	status := http.StatusOK
	if pathKey == "" {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
}

type listingSyncRequest struct {
	Records []cmodel.Record[cmodel.Listing] `json:"records"`
}

func (h *ListingHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userKey, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req listingSyncRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Logger.Warnw("Sync: invalid request body", "error", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	res, err := h.ListingService.Sync(r.Context(), userKey, req.Records)
	if err != nil {
		writeError(w, h.Logger, "SyncPosts", err)
		return
	}
	writeJSON(w, http.StatusOK, cmodel.SyncBatch[cmodel.Listing]{ServerRecords: res.ServerRecords, Updates: res.Updates, Rejected: res.Rejected})
}
