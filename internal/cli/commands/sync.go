package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"Tianguis/internal/cli/bootstrap"
	"Tianguis/internal/cli/service"
	"Tianguis/internal/config"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// pushFunc: отправка неотправленных записей одной коллекции.
type pushFunc func(ctx context.Context) (service.PushResult, error)

type syncCmd struct{}

func (syncCmd) Name() string { return "sync" }
func (syncCmd) Description() string {
	return "Отправить локальные изменения и получить свежие данные"
}
func (syncCmd) Usage() string { return "sync [--wait]" }

func (syncCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	wait := fs.Bool("wait", false, "повторять отправку, пока сервер недоступен")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		st, err := app.Session.Require()
		if err != nil {
			return err
		}

		pushListings, pushUsers := pushFunc(app.Listings.PushPending), pushFunc(app.Users.PushPending)
		if *wait {
			backoff := func() retry.Backoff {
				return retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
			}
			pushListings = func(ctx context.Context) (service.PushResult, error) {
				return app.Listings.PushPendingWithRetry(ctx, backoff())
			}
			pushUsers = func(ctx context.Context) (service.PushResult, error) {
				return app.Users.PushPendingWithRetry(ctx, backoff())
			}
		}

		// коллекции независимы: ошибка одной не отменяет другую
		var (
			g                errgroup.Group
			listRes, userRes service.PushResult
			listErr, userErr error
		)
		g.Go(func() error {
			listRes, listErr = pushListings(ctx)
			return nil
		})
		g.Go(func() error {
			userRes, userErr = pushUsers(ctx)
			return nil
		})
		_ = g.Wait()

		offline := false
		for _, r := range []struct {
			title string
			res   service.PushResult
			err   error
		}{
			{"публикации", listRes, listErr},
			{"учётная запись", userRes, userErr},
		} {
			switch {
			case r.err == nil:
				fmt.Fprintf(Out, "✓ %s: отправлено %d, принято %d\n", r.title, r.res.Sent, r.res.Marked)
				if r.res.Held > 0 {
					fmt.Fprintf(Out, "• %s: %d записей других пользователей ждут их входа\n", r.title, r.res.Held)
				}
			case service.IsAdvisory(r.err):
				offline = true
				fmt.Fprintf(Out, "• %s: сервер недоступен, %d записей ждут отправки\n", r.title, r.res.Sent)
			case r.res.Rejected > 0 && errors.Is(r.err, service.ErrRemoteRejected):
				fmt.Fprintf(Out, "• %s: отправлено %d, принято %d, сервер не принял %d (остаются неотправленными)\n",
					r.title, r.res.Sent, r.res.Marked, r.res.Rejected)
			default:
				return fmt.Errorf("%s: %w", r.title, r.err)
			}
		}
		if offline {
			return nil
		}

		lr := app.Listings.Refresh(ctx, "")
		ur := app.Users.Refresh(ctx, st.UserKey)
		if lr.Offline || ur.Offline {
			fmt.Fprintln(Out, "• Сервер недоступен: свежие данные не получены")
			return nil
		}
		fmt.Fprintf(Out, "✓ получено публикаций: %d, пропущено с локальными правками: %d\n", lr.Applied, lr.Skipped)
		return nil
	})
}

func init() {
	RegisterCmd(syncCmd{})
}
