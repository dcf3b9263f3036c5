package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"Tianguis/internal/cli/bootstrap"
	"Tianguis/internal/cli/query"
	"Tianguis/internal/config"
)

// filterFlags: общие флаги выборки для listings и watch.
type filterFlags struct {
	category string
	search   string
	mine     bool
}

func (f *filterFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.category, "category", query.AllCategories, "категория или all")
	fs.StringVar(&f.search, "search", "", "подстрока в названии или описании")
	fs.BoolVar(&f.mine, "mine", false, "только мои публикации")
}

func (f *filterFlags) filter(app *bootstrap.App) (query.Filter, error) {
	flt := query.ByCategory(f.category).And(query.BySearchTerm(f.search))
	if f.mine {
		st, err := app.Session.Require()
		if err != nil {
			return flt, err
		}
		flt = flt.And(query.ByOwner(st.UserKey))
	}
	return flt, nil
}

type listingsCmd struct{}

func (listingsCmd) Name() string { return "listings" }
func (listingsCmd) Description() string {
	return "Обновить с сервера и показать публикации"
}
func (listingsCmd) Usage() string { return "listings [--category c] [--search s] [--mine]" }

func (listingsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("listings", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var ff filterFlags
	ff.bind(fs)
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		flt, err := ff.filter(app)
		if err != nil {
			return err
		}
		if res := app.Listings.Refresh(ctx, flt.OwnerKey); res.Offline {
			fmt.Fprintln(Out, "• Сервер недоступен: показаны локальные данные")
		}
		recs, err := app.Listings.Snapshot(ctx, flt)
		if err != nil {
			return err
		}
		printListings(recs)
		return nil
	})
}

type showCmd struct{}

func (showCmd) Name() string        { return "show" }
func (showCmd) Description() string { return "Показать публикацию" }
func (showCmd) Usage() string       { return "show <key>" }

func (showCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		rec, err := app.Listings.Get(ctx, args[0])
		if err != nil {
			return outcome(err, "")
		}
		printListing(rec)
		return nil
	})
}

func init() {
	RegisterCmd(listingsCmd{})
	RegisterCmd(showCmd{})
}
