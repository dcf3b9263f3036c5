package commands

import (
	"fmt"

	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/model/view"
)

func printListings(recs []model.Record[model.Listing]) {
	if len(recs) == 0 {
		fmt.Fprintln(Out, "Нет публикаций")
		return
	}
	for _, r := range view.FromListings(recs) {
		pending := ""
		if r.Pending {
			pending = "  (не отправлено)"
		}
		fmt.Fprintf(Out, "- %s  %s  [%s]  $%.2f  %s%s\n", r.Key, r.Name, r.Category, r.Price, r.Location, pending)
	}
	fmt.Fprintf(Out, "Всего: %d\n", len(recs))
}

func printListing(rec model.Record[model.Listing]) {
	r := view.FromListing(rec)
	fmt.Fprintf(Out, "  key:         %s\n", r.Key)
	fmt.Fprintf(Out, "  name:        %s\n", r.Name)
	fmt.Fprintf(Out, "  category:    %s\n", r.Category)
	fmt.Fprintf(Out, "  price:       %.2f\n", r.Price)
	fmt.Fprintf(Out, "  location:    %s\n", r.Location)
	fmt.Fprintf(Out, "  description: %s\n", r.Description)
	fmt.Fprintf(Out, "  image:       %d bytes\n", r.ImageBytes)
	fmt.Fprintf(Out, "  owner:       %s\n", r.OwnerKey)
	fmt.Fprintf(Out, "  modified:    %s\n", r.ModifiedAt.Format("2006-01-02 15:04:05"))
	if r.Pending {
		fmt.Fprintln(Out, "  status:      не отправлено на сервер")
	}
}
