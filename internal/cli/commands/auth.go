package commands

import (
	"context"
	"errors"
	"fmt"

	"Tianguis/internal/cli/bootstrap"
	"Tianguis/internal/cli/service"
	"Tianguis/internal/config"
)

type registerCmd struct{}

func (registerCmd) Name() string { return "register" }
func (registerCmd) Description() string {
	return "Зарегистрироваться (без сети запись уйдёт на сервер при входе)"
}
func (registerCmd) Usage() string { return "register <username> <display-name> [password]" }

func (registerCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return ErrUsage
	}
	password := ""
	if len(args) == 3 {
		password = args[2]
	} else {
		p, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}
		password = p
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		rec, err := app.Auth.Register(ctx, args[0], args[1], password)
		if errors.Is(err, service.ErrUsernameTaken) {
			return errors.New("имя пользователя уже занято")
		}
		if err := outcome(err, "Учётная запись создана"); err != nil {
			return err
		}
		fmt.Fprintf(Out, "  key:  %s\n", rec.Key)
		fmt.Fprintln(Out, "→ Теперь выполните login")
		return nil
	})
}

type loginCmd struct{}

func (loginCmd) Name() string { return "login" }
func (loginCmd) Description() string {
	return "Войти (без сети по локальной копии учётной записи)"
}
func (loginCmd) Usage() string { return "login <username> [password]" }

func (loginCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}
	password := ""
	if len(args) == 2 {
		password = args[1]
	} else {
		p, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}
		password = p
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		st, err := app.Auth.Login(ctx, args[0], password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				return errors.New("неверное имя пользователя или пароль")
			}
			return err
		}
		if st.Offline {
			fmt.Fprintf(Out, "✓ Вход выполнен офлайн: %s\n", st.Username)
			fmt.Fprintln(Out, "• Сервер недоступен: изменения будут отправлены после синхронизации")
			return nil
		}
		fmt.Fprintf(Out, "✓ Вход выполнен: %s\n", st.Username)
		return nil
	})
}

type logoutCmd struct{}

func (logoutCmd) Name() string        { return "logout" }
func (logoutCmd) Description() string { return "Выйти и забыть сессию" }
func (logoutCmd) Usage() string       { return "logout" }

func (logoutCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if err := app.Auth.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(Out, "✓ Сессия завершена")
		return nil
	})
}

type statusCmd struct{}

func (statusCmd) Name() string { return "status" }
func (statusCmd) Description() string {
	return "Показать пользователя и число неотправленных изменений"
}
func (statusCmd) Usage() string { return "status" }

func (statusCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		st, err := app.Auth.CurrentUser()
		if err != nil {
			fmt.Fprintln(Out, "Пользователь: не выполнен вход")
		} else {
			mode := "онлайн"
			if st.Offline {
				mode = "офлайн"
			}
			fmt.Fprintf(Out, "Пользователь: %s (%s)\n", st.Username, mode)
		}
		listings, err := app.Listings.Pending(ctx)
		if err != nil {
			return err
		}
		users, err := app.Users.Pending(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(Out, "Сервер: %s\n", app.API.BaseURL())
		fmt.Fprintf(Out, "Неотправлено: публикаций %d, учётных записей %d\n", listings, users)
		return nil
	})
}

func init() {
	RegisterCmd(registerCmd{})
	RegisterCmd(loginCmd{})
	RegisterCmd(logoutCmd{})
	RegisterCmd(statusCmd{})
}
