package model

import (
	cmodel "Tianguis/internal/cli/model"
)

// Listing: серверная модель объявления.
type Listing struct {
	Key         string  `gorm:"primaryKey;column:id"`
	OwnerKey    string  `gorm:"not null;index"`
	Name        string  `gorm:"not null"`
	Category    string  `gorm:"not null;index"`
	Description string  `gorm:"not null"`
	Location    string  `gorm:"not null"`
	Price       float64 `gorm:"not null"`
	Image       string  // base64
	ModifiedAt  int64   `gorm:"not null;index"`
	Deleted     bool    `gorm:"not null"`
}

func ListingFromRecord(rec cmodel.Record[cmodel.Listing]) *Listing {
	p := rec.Payload
	return &Listing{
		Key:         rec.Key,
		OwnerKey:    rec.OwnerKey,
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Location:    p.Location,
		Price:       p.Price,
		Image:       p.Image,
		ModifiedAt:  rec.ModifiedAt,
		Deleted:     rec.Deleted,
	}
}

func (l *Listing) Record() cmodel.Record[cmodel.Listing] {
	return cmodel.Record[cmodel.Listing]{
		Key:      l.Key,
		OwnerKey: l.OwnerKey,
		Payload: cmodel.Listing{
			Name:        l.Name,
			Category:    l.Category,
			Description: l.Description,
			Location:    l.Location,
			Price:       l.Price,
			Image:       l.Image,
		},
		ModifiedAt: l.ModifiedAt,
		Deleted:    l.Deleted,
		Synced:     true,
	}
}

// ListingRecords переводит список моделей в записи протокола.
func ListingRecords(ls []Listing) []cmodel.Record[cmodel.Listing] {
	out := make([]cmodel.Record[cmodel.Listing], 0, len(ls))
	for i := range ls {
		out = append(out, ls[i].Record())
	}
	return out
}
