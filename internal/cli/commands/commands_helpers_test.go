package commands

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"Tianguis/internal/config"
	"Tianguis/internal/handlers"
	"Tianguis/internal/repo"
	"Tianguis/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testConfig направляет все клиентские файлы во временный каталог.
func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServerURL:      serverURL,
		ClientDBPath:   filepath.Join(dir, "client.sqlite"),
		SessionFile:    filepath.Join(dir, "session.json"),
		RequestTimeout: 2 * time.Second,
	}
}

// switchableServer: настоящий сервер, который можно «выключить»: пока down, отвечает 503.
type switchableServer struct {
	*httptest.Server
	down atomic.Bool
}

func newSwitchableServer(t *testing.T) *switchableServer {
	t.Helper()
	db, err := repo.InitDB(filepath.Join(t.TempDir(), "server.sqlite"))
	require.NoError(t, err)
	logger := zap.NewNop().Sugar()
	h := handlers.NewHandler(
		service.NewUserService(repo.NewUserRepository(db)),
		service.NewListingService(repo.NewListingRepository(db), logger),
		logger,
		&config.Config{AuthSecret: "test-secret"},
	)

	s := &switchableServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		h.Router.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

var keyLine = regexp.MustCompile(`key:\s+(\S+)`)

// createdKey достаёт ключ из вывода add/register.
func createdKey(t *testing.T, out string) string {
	t.Helper()
	m := keyLine.FindStringSubmatch(out)
	require.Len(t, m, 2, "no key in output: %s", out)
	return m[1]
}
