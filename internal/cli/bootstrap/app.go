// Package bootstrap собирает клиентское приложение: локальную БД, сессию, API и движки синхронизации.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"Tianguis/internal/cli/api"
	"Tianguis/internal/cli/model"
	"Tianguis/internal/cli/observe"
	fsrepo "Tianguis/internal/cli/repo/fs"
	reposqlite "Tianguis/internal/cli/repo/sqlite"
	"Tianguis/internal/cli/service"
	"Tianguis/internal/cli/session"
	"Tianguis/internal/config"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App: всё, что нужно командам CLI. Закрывается через Close.
type App struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	DB      *sqlx.DB
	Session *session.Session
	API     *api.Client

	ListingHub *observe.Hub[model.Listing]
	UserHub    *observe.Hub[model.User]
	Listings   *service.Engine[model.Listing]
	Users      *service.Engine[model.User]
	Auth       *service.AuthService

	closeLog func() error
}

// Open открывает БД устройства (одна на все учётные записи, чтобы работал вход без сети),
// поднимает сохранённую сессию и собирает движки.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, closeLog := NewLogger(cfg.LogFile, zapcore.InfoLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.ClientDBPath), 0o700); err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := reposqlite.Open(ctx, cfg.ClientDBPath)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("open local db: %w", err)
	}

	sess := session.New(fsrepo.SessionFSStore{Path: cfg.SessionFile})
	sess.Restore()
	client := api.NewClient(cfg.ServerURL, cfg.RequestTimeout, sess.Token)

	listings := reposqlite.NewListings(db)
	users := reposqlite.NewUsers(db)
	listingHub := observe.NewHub(listings.All, logger)
	userHub := observe.NewHub(users.All, logger)
	listings.OnChange(listingHub.Notify)
	users.OnChange(userHub.Notify)

	userEngine := service.NewEngine[model.User](users, api.Users(client), userHub, sess, logger)
	app := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Session:    sess,
		API:        client,
		ListingHub: listingHub,
		UserHub:    userHub,
		Listings: service.NewEngine[model.Listing](listings, api.Listings(client), listingHub, sess, logger,
			service.WithOwnerFromSession()),
		Users:    userEngine,
		Auth:     service.NewAuthService(userEngine, client, sess, logger),
		closeLog: closeLog,
	}
	logger.Infow("client started", "db", cfg.ClientDBPath, "server", cfg.ServerURL, "logged_in", sess.UserKey() != "")
	return app, nil
}

// Close дожидается фоновых обновлений и освобождает ресурсы.
func (a *App) Close() error {
	a.Listings.Wait()
	a.Users.Wait()
	return errors.Join(a.DB.Close(), a.closeLog())
}
