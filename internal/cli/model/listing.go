package model

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Ограничения формы публикации.
const (
	MaxNameLen        = 30
	MaxDescriptionLen = 200
	MaxLocationLen    = 30
	MaxImageBytes     = 20 * 1024
)

// Categories: допустимые категории публикаций.
var Categories = []string{"Comida", "Bebida", "Ropa", "Dulces", "Regalos", "Otros"}

// Listing: публикация товара на рынке.
type Listing struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"` // base64
}

func (Listing) Kind() string { return "listing" }

func (l Listing) Facet() string { return l.Category }

func (l Listing) Terms() []string { return []string{l.Name, l.Description} }

// Validate проверяет поля публикации.
func (l Listing) Validate() error {
	if err := checkText("name", l.Name, MaxNameLen); err != nil {
		return err
	}
	if NormalizeCategory(l.Category) == "" {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, l.Category)
	}
	if err := checkText("description", l.Description, MaxDescriptionLen); err != nil {
		return err
	}
	if err := checkText("location", l.Location, MaxLocationLen); err != nil {
		return err
	}
	if l.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}
	if l.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalid)
	}
	img, err := base64.StdEncoding.DecodeString(l.Image)
	if err != nil {
		return fmt.Errorf("%w: image is not valid base64", ErrInvalid)
	}
	if len(img) > MaxImageBytes {
		return fmt.Errorf("%w: image exceeds %d bytes", ErrInvalid, MaxImageBytes)
	}
	return nil
}

// NormalizeCategory приводит категорию к каноничному написанию; пустая строка: неизвестная категория.
func NormalizeCategory(c string) string {
	for _, known := range Categories {
		if strings.EqualFold(known, strings.TrimSpace(c)) {
			return known
		}
	}
	return ""
}

func checkText(field, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, field)
	}
	if utf8.RuneCountInString(v) > max {
		return fmt.Errorf("%w: %s is longer than %d characters", ErrInvalid, field, max)
	}
	return nil
}
