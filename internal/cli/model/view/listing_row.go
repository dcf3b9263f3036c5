package view

import (
	"time"

	"Tianguis/internal/cli/model"
)

// ListingRow: DTO для отображения публикации в CLI.
type ListingRow struct {
	Key         string
	Name        string
	Category    string
	Location    string
	Description string
	Price       float64
	OwnerKey    string
	ModifiedAt  time.Time
	Pending     bool // локальные изменения ещё не приняты сервером
	ImageBytes  int
}

// FromListing строит строку отображения из записи.
func FromListing(r model.Record[model.Listing]) ListingRow {
	return ListingRow{
		Key:         r.Key,
		Name:        r.Payload.Name,
		Category:    r.Payload.Category,
		Location:    r.Payload.Location,
		Description: r.Payload.Description,
		Price:       r.Payload.Price,
		OwnerKey:    r.OwnerKey,
		ModifiedAt:  time.UnixMilli(r.ModifiedAt),
		Pending:     !r.Synced,
		ImageBytes:  len(r.Payload.Image) * 3 / 4,
	}
}

// FromListings строит строки для набора записей, сохраняя порядок.
func FromListings(recs []model.Record[model.Listing]) []ListingRow {
	out := make([]ListingRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, FromListing(r))
	}
	return out
}
