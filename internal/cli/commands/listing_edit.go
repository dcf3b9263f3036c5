package commands

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"

	"Tianguis/internal/cli/bootstrap"
	"Tianguis/internal/cli/model"
	"Tianguis/internal/config"
)

// listingFlags: поля публикации; для edit меняются только заданные.
type listingFlags struct {
	name, category, description, location, imageFile string
	price                                            float64
	set                                              map[string]bool
}

func newListingFlagSet(name string, lf *listingFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&lf.name, "name", "", "название")
	fs.StringVar(&lf.category, "category", "", "категория: Comida, Bebida, Ropa, Dulces, Regalos, Otros")
	fs.StringVar(&lf.description, "description", "", "описание")
	fs.StringVar(&lf.location, "location", "", "место продажи")
	fs.Float64Var(&lf.price, "price", 0, "цена")
	fs.StringVar(&lf.imageFile, "image-file", "", "путь к картинке")
	return fs
}

func (lf *listingFlags) collect(fs *flag.FlagSet) {
	lf.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { lf.set[f.Name] = true })
}

// apply переносит заданные флаги в публикацию.
func (lf *listingFlags) apply(l *model.Listing) error {
	if lf.set["name"] {
		l.Name = lf.name
	}
	if lf.set["category"] {
		l.Category = lf.category
		if c := model.NormalizeCategory(lf.category); c != "" {
			l.Category = c
		}
	}
	if lf.set["description"] {
		l.Description = lf.description
	}
	if lf.set["location"] {
		l.Location = lf.location
	}
	if lf.set["price"] {
		l.Price = lf.price
	}
	if lf.set["image-file"] {
		b, err := os.ReadFile(lf.imageFile)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		if len(b) > model.MaxImageBytes {
			return fmt.Errorf("картинка больше %d КБ", model.MaxImageBytes/1024)
		}
		l.Image = base64.StdEncoding.EncodeToString(b)
	}
	return nil
}

type addCmd struct{}

func (addCmd) Name() string { return "add" }
func (addCmd) Description() string {
	return "Создать публикацию (без сети сохранится локально)"
}
func (addCmd) Usage() string {
	return "add --name n --category c --description d --location l --price p --image-file f"
}

func (addCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	var lf listingFlags
	fs := newListingFlagSet("add", &lf)
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}
	lf.collect(fs)
	for _, req := range []string{"name", "category", "description", "location", "price", "image-file"} {
		if !lf.set[req] {
			return ErrUsage
		}
	}
	var l model.Listing
	if err := lf.apply(&l); err != nil {
		return err
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if _, err := app.Session.Require(); err != nil {
			return err
		}
		rec, err := app.Listings.Create(ctx, model.Record[model.Listing]{Payload: l})
		if err := outcome(err, "Публикация создана"); err != nil {
			return err
		}
		fmt.Fprintf(Out, "  key:  %s\n", rec.Key)
		fmt.Fprintf(Out, "  name: %s\n", rec.Payload.Name)
		return nil
	})
}

type editCmd struct{}

func (editCmd) Name() string        { return "edit" }
func (editCmd) Description() string { return "Изменить свою публикацию" }
func (editCmd) Usage() string {
	return "edit <key> [--name n] [--category c] [--description d] [--location l] [--price p] [--image-file f]"
}

func (editCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return ErrUsage
	}
	key := args[0]
	var lf listingFlags
	fs := newListingFlagSet("edit", &lf)
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}
	lf.collect(fs)
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if _, err := app.Session.Require(); err != nil {
			return err
		}
		rec, err := app.Listings.Get(ctx, key)
		if err != nil {
			return outcome(err, "")
		}
		if err := lf.apply(&rec.Payload); err != nil {
			return err
		}
		_, err = app.Listings.Update(ctx, rec)
		return outcome(err, "Публикация обновлена")
	})
}

type deleteCmd struct{}

func (deleteCmd) Name() string        { return "delete" }
func (deleteCmd) Description() string { return "Удалить свою публикацию" }
func (deleteCmd) Usage() string       { return "delete <key>" }

func (deleteCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		st, err := app.Session.Require()
		if err != nil {
			return err
		}
		return outcome(app.Listings.SoftDelete(ctx, args[0], st.UserKey), "Публикация удалена")
	})
}

func init() {
	RegisterCmd(addCmd{})
	RegisterCmd(editCmd{})
	RegisterCmd(deleteCmd{})
}
