package main

import (
	"database/sql"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cafe-pos/internal/api"
	"cafe-pos/internal/config"
	"cafe-pos/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppPort:        "8080",
		AppEnv:         "test",
		JWTSecret:      "secret",
		CORSOrigin:     "*",
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

func TestSetupRouter(t *testing.T) {
	h := api.NewHandler(nil, nil, nil, nil)
	router := setupRouter(testConfig(), h)

	t.Run("Health Check", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"ok"`)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Transitions Require Staff", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/queue-entries/7d4f2c3e-3b7a-4a8e-9d7e-1f2a3b4c5d6e/ready", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Queue Writes Require Staff", func(t *testing.T) {
		for _, path := range []string{"/queues/drink/entries", "/queues/drink/recompute"} {
			req, _ := http.NewRequest("POST", path, nil)
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		}
	})

	t.Run("Unknown Route", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/graphql", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestNewServer(t *testing.T) {
	db, err := sql.Open("mock_driver_main", "")
	require.NoError(t, err)

	t.Run("Defaults", func(t *testing.T) {
		router, err := newServer(testConfig(), db, notify.Nop{})
		require.NoError(t, err)

		req, _ := http.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Kitchen Profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kitchen.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_simultaneous: 2\nbase_times:\n  pizza: 600\n"), 0o600))

		cfg := testConfig()
		cfg.KitchenConfig = path

		router, err := newServer(cfg, db, notify.Nop{})
		require.NoError(t, err)
		assert.NotNil(t, router)
	})

	t.Run("Bad Kitchen Profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kitchen.yaml")
		require.NoError(t, os.WriteFile(path, []byte("base_times:\n  salad: 100\n"), 0o600))

		cfg := testConfig()
		cfg.KitchenConfig = path

		_, err := newServer(cfg, db, notify.Nop{})
		assert.Error(t, err)
	})
}

// --- Mock Driver for Testing ---
type mockDriver struct{}

func (m *mockDriver) Open(name string) (driver.Conn, error)         { return &mockConn{}, nil }
func (c *mockConn) Prepare(query string) (driver.Stmt, error)       { return &mockStmt{}, nil }
func (c *mockConn) Close() error                                    { return nil }
func (c *mockConn) Begin() (driver.Tx, error)                       { return nil, nil }
func (s *mockStmt) Close() error                                    { return nil }
func (s *mockStmt) NumInput() int                                   { return 0 }
func (s *mockStmt) Exec(args []driver.Value) (driver.Result, error) { return nil, nil }
func (s *mockStmt) Query(args []driver.Value) (driver.Rows, error)  { return nil, nil }

type mockConn struct{}
type mockStmt struct{}

func init() {
	sql.Register("mock_driver_main", &mockDriver{})
}

func TestRun(t *testing.T) {
	origInitDB := initDBFunc
	defer func() { initDBFunc = origInitDB }()
	initDBFunc = func(cfg *config.Config) *sql.DB {
		db, _ := sql.Open("mock_driver_main", "")
		return db
	}

	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()
	var servedAddr string
	startServerFunc = func(addr string, handler http.Handler) error {
		servedAddr = addr
		return nil
	}

	t.Setenv("APP_PORT", "8080")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "user")
	t.Setenv("DB_PASSWORD", "pass")
	t.Setenv("DB_NAME", "db")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("KITCHEN_CONFIG", "")

	assert.NoError(t, run())
	assert.Equal(t, ":8080", servedAddr)
}

func TestRunRequiresSecretInProduction(t *testing.T) {
	origInitDB := initDBFunc
	defer func() { initDBFunc = origInitDB }()
	initDBFunc = func(cfg *config.Config) *sql.DB {
		t.Fatal("database must not be opened without a token secret")
		return nil
	}

	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("JWT_SECRET", "")

	assert.ErrorContains(t, run(), "JWT_SECRET")
}
