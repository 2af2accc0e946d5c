package hakari_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hakari"
	"github.com/ashita-ai/hakari/internal/testutil"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in -short mode")
	}
	tc, err := testutil.StartPostgres()
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(tc.Terminate)
	return tc.DSN
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestAppLifecycle(t *testing.T) {
	dsn := startPostgres(t)
	t.Setenv("HAKARI_RATE_LIMIT_ENABLED", "false")
	port := freePort(t)

	extra := fstest.MapFS{
		"900_scratch.sql": &fstest.MapFile{Data: []byte(`CREATE TABLE IF NOT EXISTS scratch (id int);`)},
	}

	app, err := hakari.New(
		hakari.WithDatabaseURL(dsn),
		hakari.WithPort(port),
		hakari.WithLogger(testutil.TestLogger()),
		hakari.WithVersion("1.2.3"),
		hakari.WithRankLimit(5),
		hakari.WithExtraMigrations(extra),
	)
	require.NoError(t, err)

	// The handler is usable before Run.
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview/evaluations/metrics/?project_id=p", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get(url) //nolint:noctx // test
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 5*time.Second, 20*time.Millisecond)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Status   string `json:"status"`
			Version  string `json:"version"`
			Postgres string `json:"postgres"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Data.Status)
	assert.Equal(t, "1.2.3", body.Data.Version)
	assert.Equal(t, "connected", body.Data.Postgres)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsBadMigration(t *testing.T) {
	dsn := startPostgres(t)
	t.Setenv("HAKARI_RATE_LIMIT_ENABLED", "false")

	_, err := hakari.New(
		hakari.WithDatabaseURL(dsn),
		hakari.WithLogger(testutil.TestLogger()),
		hakari.WithExtraMigrations(fstest.MapFS{
			"901_broken.sql": &fstest.MapFile{Data: []byte(`NOT SQL;`)},
		}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra migrations[0]")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Setenv("HAKARI_RANK_LIMIT", "0")
	_, err := hakari.New(hakari.WithLogger(testutil.TestLogger()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HAKARI_RANK_LIMIT")
}
