// Package query содержит чистые фильтры и сортировку поверх снимка локального хранилища.
package query

import (
	"sort"
	"strings"

	"Tianguis/internal/cli/model"
)

// AllCategories: значение категории, не ограничивающее выборку.
const AllCategories = "all"

// Filter: композиция условий выборки. Пустое поле не ограничивает результат.
// Удалённые записи исключаются всегда.
type Filter struct {
	Category string
	OwnerKey string
	Term     string
}

// ByCategory фильтр по категории; AllCategories: тождественный фильтр.
func ByCategory(category string) Filter { return Filter{Category: category} }

// ByOwner фильтр по владельцу.
func ByOwner(ownerKey string) Filter { return Filter{OwnerKey: ownerKey} }

// BySearchTerm регистронезависимый поиск подстроки по названию и описанию.
func BySearchTerm(term string) Filter { return Filter{Term: term} }

// And объединяет условия; непустые поля other перекрывают f.
func (f Filter) And(other Filter) Filter {
	if other.Category != "" {
		f.Category = other.Category
	}
	if other.OwnerKey != "" {
		f.OwnerKey = other.OwnerKey
	}
	if other.Term != "" {
		f.Term = other.Term
	}
	return f
}

func (f Filter) anyCategory() bool {
	c := strings.TrimSpace(f.Category)
	return c == "" || strings.EqualFold(c, AllCategories)
}

// Match проверяет одну запись.
func Match[P model.Payload](f Filter, r model.Record[P]) bool {
	if r.Deleted {
		return false
	}
	if !f.anyCategory() && !strings.EqualFold(r.Payload.Facet(), strings.TrimSpace(f.Category)) {
		return false
	}
	if f.OwnerKey != "" && r.OwnerKey != f.OwnerKey {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Term)); term != "" {
		found := false
		for _, field := range r.Payload.Terms() {
			if strings.Contains(strings.ToLower(field), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply возвращает новую выборку: отфильтровано и отсортировано по modified_at DESC.
// Входной срез не изменяется.
func Apply[P model.Payload](rows []model.Record[P], f Filter) []model.Record[P] {
	out := make([]model.Record[P], 0, len(rows))
	for _, r := range rows {
		if Match(f, r) {
			out = append(out, r)
		}
	}
	Sort(out)
	return out
}

// Sort упорядочивает по modified_at DESC, при равенстве: по ключу.
func Sort[P model.Payload](rows []model.Record[P]) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ModifiedAt != rows[j].ModifiedAt {
			return rows[i].ModifiedAt > rows[j].ModifiedAt
		}
		return rows[i].Key < rows[j].Key
	})
}
