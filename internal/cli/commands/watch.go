package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"Tianguis/internal/cli/bootstrap"
	"Tianguis/internal/cli/observe"
	"Tianguis/internal/config"
)

type watchCmd struct{}

func (watchCmd) Name() string { return "watch" }
func (watchCmd) Description() string {
	return "Следить за публикациями до Ctrl+C"
}
func (watchCmd) Usage() string {
	return "watch [--category c] [--search s] [--mine] [--every 30s]"
}

func (watchCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var ff filterFlags
	ff.bind(fs)
	every := fs.Duration("every", 30*time.Second, "период обновления с сервера, 0 отключает")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 || *every < 0 {
		return ErrUsage
	}

	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		flt, err := ff.filter(app)
		if err != nil {
			return err
		}
		sub, err := app.Listings.ObserveAll(ctx, flt)
		if err != nil {
			return err
		}
		defer sub.Cancel()

		// изменения из других процессов tianguis на этом устройстве
		fw, err := observe.NewFileWatcher(app.Config.ClientDBPath, app.Logger, app.ListingHub)
		if err != nil {
			app.Logger.Warnw("watch: file watcher disabled", "error", err)
		} else {
			go func() { _ = fw.Run(ctx) }()
		}

		var tick <-chan time.Time
		if *every > 0 {
			t := time.NewTicker(*every)
			defer t.Stop()
			tick = t.C
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
				app.Listings.Refresh(ctx, flt.OwnerKey)
			case recs, ok := <-sub.C:
				if !ok {
					return nil
				}
				fmt.Fprintf(Out, "--- %s ---\n", time.Now().Format("15:04:05"))
				printListings(recs)
			}
		}
	})
}

func init() {
	RegisterCmd(watchCmd{})
}
