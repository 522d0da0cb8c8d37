package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory trainlog API good enough for the CLI flows.
type fakeAPI struct {
	*httptest.Server

	mu        sync.Mutex
	version   int64
	records   map[string]models.Record
	passwords map[string]string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{records: map[string]models.Record{}, passwords: map[string]string{}}

	user := func(email string) models.UserInfo {
		return models.UserInfo{ID: "u-1", Email: email, Role: "athlete"}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var c struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&c)
		f.mu.Lock()
		f.passwords[c.Email] = c.Password
		f.mu.Unlock()
		writeJSON(w, http.StatusCreated, models.AuthResponse{AccessToken: "at", RefreshToken: "rt", User: user(c.Email)})
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var c struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&c)
		f.mu.Lock()
		want, ok := f.passwords[c.Email]
		f.mu.Unlock()
		if !ok || want != c.Password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "INVALID_CREDENTIALS", "message": "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, models.AuthResponse{AccessToken: "at", RefreshToken: "rt", User: user(c.Email)})
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, user("ann@example.com"))
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /change-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "password changed"})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /sync/push", f.push)
	mux.HandleFunc("GET /sync/changes", f.changes)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) push(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Records []models.PushItem `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "BAD_REQUEST", "message": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]models.PushResult, 0, len(body.Records))
	for _, it := range body.Records {
		f.version++
		f.records[it.ID] = models.Record{ID: it.ID, Kind: it.Kind, Payload: it.Payload, Deleted: it.Deleted, Version: f.version}
		results = append(results, models.PushResult{ID: it.ID, Accepted: true, Version: f.version})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (f *fakeAPI) changes(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)

	f.mu.Lock()
	defer f.mu.Unlock()
	recs := []models.Record{}
	for _, rec := range f.records {
		if rec.Version > since {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Version < recs[j].Version })
	writeJSON(w, http.StatusOK, models.ChangeSet{Records: recs, Version: f.version})
}

func (f *fakeAPI) record(id string) (models.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	return rec, ok
}

// coach runs the CLI against a temporary data dir. Without an API it runs
// with -offline.
type coach struct {
	t   *testing.T
	dir string
	api string
}

func newCoach(t *testing.T, configJSON string) *coach {
	t.Helper()
	dir := t.TempDir()
	if configJSON == "" {
		configJSON = `{"ui": {"color": false}}`
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(configJSON), 0o600))
	return &coach{t: t, dir: dir}
}

func (c *coach) run(stdin string, args ...string) (code int, stdout, stderr string) {
	full := []string{"-d", c.dir}
	if c.api != "" {
		full = append(full, "-a", c.api)
	} else {
		full = append(full, "-offline")
	}
	full = append(full, args...)

	var out, errOut bytes.Buffer
	code = Run(context.Background(), full, func(string) string { return "" }, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

// ok runs a command that must succeed and returns its output.
func (c *coach) ok(args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run("", args...)
	require.Equal(c.t, 0, code, "coach %v: %s", args, errOut)
	return out
}

var loggedIDRe = regexp.MustCompile(`(?:Workout logged|Goal created): (\S+)`)

func createdID(t *testing.T, out string) string {
	t.Helper()
	m := loggedIDRe.FindStringSubmatch(out)
	require.NotNil(t, m, out)
	return m[1]
}

var errNoMoreAnswers = errors.New("no more answers")

// stubPasswords makes getPassword return the answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := getPassword
	t.Cleanup(func() { getPassword = orig })

	var mu sync.Mutex
	getPassword = func(string, io.Writer) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(answers) == 0 {
			return nil, errNoMoreAnswers
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}
