package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"Tianguis/internal/cli/bootstrap"
	"Tianguis/internal/cli/service"
	"Tianguis/internal/config"

	"golang.org/x/term"
)

// In: ввод для запроса пароля, когда stdin не терминал. В тестах подменяется.
var In io.Reader = os.Stdin

// openApp подменяется в тестах.
var openApp = bootstrap.Open

// withApp открывает приложение на время выполнения команды.
func withApp(ctx context.Context, cfg *config.Config, fn func(app *bootstrap.App) error) error {
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	runErr := fn(app)
	if err := app.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// readPassword спрашивает пароль без эха, если stdin: терминал.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(Out, prompt)
	if f, ok := In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(Out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// outcome печатает итог мутирующей операции. Отложенная отправка: не ошибка команды.
func outcome(err error, done string) error {
	switch {
	case err == nil:
		fmt.Fprintf(Out, "✓ %s\n", done)
		return nil
	case service.IsAdvisory(err):
		fmt.Fprintf(Out, "✓ %s\n", done)
		fmt.Fprintln(Out, "• Сервер недоступен: изменения сохранены локально и будут отправлены при синхронизации")
		return nil
	case errors.Is(err, service.ErrRemoteRejected):
		return fmt.Errorf("сервер отклонил изменение: %w", err)
	case errors.Is(err, service.ErrNotFound):
		return fmt.Errorf("запись не найдена: %w", err)
	default:
		return err
	}
}
