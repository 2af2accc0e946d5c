package cmd

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/hakari/internal/auth"
	"github.com/ashita-ai/hakari/internal/model"
)

// fakeAPI answers the handful of endpoints the commands call and records
// what was written.
type fakeAPI struct {
	mu      sync.Mutex
	created []map[string]any
	updated []map[string]any
	lastReq *http.Request
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /preview/evaluations/metrics/aggregate", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = io.WriteString(w, `{"metrics":{"score":{"count":2,"kind":"numeric","mean":0.5}}}`)
	})
	mux.HandleFunc("GET /preview/evaluations/metrics/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.URL.Query().Get("scenario_ids") == "s1" {
			_, _ = io.WriteString(w, `{"metrics":[{"id":"7d444840-9dc0-11d1-b245-5ffdce74fad2","run_id":"r1","scenario_id":"s1","data":{"a":1}}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"metrics":[]}`)
	})
	mux.HandleFunc("POST /preview/evaluations/metrics/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Metrics []map[string]any `json:"metrics"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.created = append(f.created, body.Metrics...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"metrics": body.Metrics})
	})
	mux.HandleFunc("PATCH /preview/evaluations/metrics/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Metrics []map[string]any `json:"metrics"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.updated = append(f.updated, body.Metrics...)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"metrics": body.Metrics})
	})
	mux.HandleFunc("GET /preview/evaluations/runs/{run_id}/stats", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.PathValue("run_id") == "missing" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":"FORBIDDEN","message":"no access"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"run_id":"`+r.PathValue("run_id")+`","scenario_count":3,"metrics":{}}`)
	})
	return mux
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	f.lastReq = r
	f.mu.Unlock()
}

func (f *fakeAPI) writes() (created, updated []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, f.updated
}

func (f *fakeAPI) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// execute runs hakarictl with args against srv and returns stdout.
func execute(t *testing.T, srvURL string, stdin string, args ...string) (string, error) {
	t.Helper()
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--url", srvURL, "--token", "tok", "--project", "proj-a"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestAggregateCommand(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	input := `[{"entity_id":"a","data":{"score":0,"ok":true}},{"entity_id":"b","data":{"score":1,"ok":false}}]`

	t.Run("local", func(t *testing.T) {
		out, err := execute(t, srv.URL, input, "aggregate", "-")
		require.NoError(t, err)

		var got map[string]map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "numeric", got["score"]["kind"])
		assert.InDelta(t, 0.5, got["score"]["mean"], 1e-9)
		assert.Equal(t, "binary", got["ok"]["kind"])
		assert.Nil(t, api.last(), "local aggregation must not call the server")
	})

	t.Run("remote", func(t *testing.T) {
		out, err := execute(t, srv.URL, input, "aggregate", "--remote", "-")
		require.NoError(t, err)

		var got map[string]map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "numeric", got["score"]["kind"])
		req := api.last()
		require.NotNil(t, req)
		assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
		assert.Equal(t, "proj-a", req.URL.Query().Get("project_id"))
	})
}

func TestAggregateCommand_BadInput(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler())
	defer srv.Close()

	_, err := execute(t, srv.URL, `not json`, "aggregate", "-")
	assert.Error(t, err)

	_, err = execute(t, srv.URL, "", "aggregate", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestUpsertCommand_Scenarios(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"entity_id":"s1","data":{"b":2}},
		{"entity_id":"s2","data":{"b":3}}
	]`), 0o600))

	out, err := execute(t, srv.URL, "", "upsert", "--run", "r1", path)
	require.NoError(t, err)
	assert.Equal(t, "created 1, updated 1\n", out)

	created, updated := api.writes()
	require.Len(t, updated, 1)
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, updated[0]["data"])
	require.Len(t, created, 1)
	assert.Equal(t, "s2", created[0]["scenario_id"])
}

func TestUpsertCommand_RunLevel(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	out, err := execute(t, srv.URL, `{"total_cost":1.5}`, "upsert", "--run", "r9", "--run-level", "-")
	require.NoError(t, err)
	assert.Equal(t, "created 1, updated 0\n", out)
	created, _ := api.writes()
	require.Len(t, created, 1)
	assert.NotContains(t, created[0], "scenario_id")
	assert.Equal(t, "r9", created[0]["run_id"])
}

func TestUpsertCommand_RequiresRun(t *testing.T) {
	srv := httptest.NewServer((&fakeAPI{}).handler())
	defer srv.Close()

	_, err := execute(t, srv.URL, `[]`, "upsert", "-")
	assert.Error(t, err)
}

func TestStatsCommand(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	out, err := execute(t, srv.URL, "", "stats", "--run", "nightly")
	require.NoError(t, err)
	assert.Contains(t, out, `"scenario_count": 3`)

	_, err = execute(t, srv.URL, "", "stats", "--run", "missing")
	assert.ErrorContains(t, err, "no access")
}

func TestTokenCommand(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	dir := t.TempDir()

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	privPath := filepath.Join(dir, "jwt.pem")
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	pubPath := filepath.Join(dir, "jwt.pub")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	out, err := execute(t, "http://unused", "", "token",
		"--private-key", privPath, "--subject", "ci", "--role", "writer",
		"--project", "proj-a,proj-b")
	require.NoError(t, err)

	mgr, err := auth.NewJWTManager(privPath, pubPath, 0)
	require.NoError(t, err)
	claims, err := mgr.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ci", claims.Subject)
	assert.Equal(t, model.RoleWriter, claims.Role)
	assert.Equal(t, []string{"proj-a", "proj-b"}, claims.Projects)

	_, err = execute(t, "http://unused", "", "token",
		"--private-key", privPath, "--subject", "ci", "--role", "root", "--project", "p")
	assert.Error(t, err)
}

func TestKeygenCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	out, err := execute(t, "http://unused", "", "keygen", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, privateKeyFile)

	privPath := filepath.Join(dir, privateKeyFile)
	pubPath := filepath.Join(dir, publicKeyFile)
	mgr, err := auth.NewJWTManager(privPath, pubPath, time.Hour)
	require.NoError(t, err, "generated pair must load and match")

	token, _, err := mgr.IssueToken("ci", model.RoleReader, []string{"p"}, 0)
	require.NoError(t, err)
	_, err = mgr.ValidateToken(token)
	require.NoError(t, err)

	_, err = execute(t, "http://unused", "", "keygen", "--dir", dir)
	assert.ErrorContains(t, err, "already exists")
}
