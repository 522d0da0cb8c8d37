package syncer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/dmitrijs2005/trainlog/internal/client/models"
)

// fakeServer is an in-memory trainlog sync API.
type fakeServer struct {
	*httptest.Server

	mu            sync.Mutex
	version       int64
	records       map[string]models.Record
	failIDs       map[string]bool
	profileStatus int
	accessToken   string
	pushes        int
	requests      int
}

func newFakeServer(t *testing.T) *fakeServer {
	s := &fakeServer{records: map[string]models.Record{}, failIDs: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := s.profileStatus
		s.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"error_code": "nope", "message": "nope"})
			return
		}
		writeJSON(w, http.StatusOK, models.UserInfo{ID: "u1", Email: "ann@example.com", Role: "athlete"})
	})
	mux.HandleFunc("POST /refresh", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		tok := s.accessToken
		s.mu.Unlock()
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "INVALID_TOKEN", "message": "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: tok, TokenType: "Bearer", ExpiresIn: 900})
	})
	mux.HandleFunc("POST /sync/push", s.push)
	mux.HandleFunc("GET /sync/changes", s.changes)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		tok := s.accessToken
		s.mu.Unlock()
		if tok != "" && r.URL.Path != "/refresh" && r.Header.Get("Authorization") != "Bearer "+tok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "TOKEN_EXPIRED", "message": "token expired"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *fakeServer) push(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Records []models.PushItem `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "BAD_REQUEST", "message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushes++

	results := make([]models.PushResult, 0, len(body.Records))
	for _, it := range body.Records {
		res := models.PushResult{ID: it.ID}
		existing, ok := s.records[it.ID]
		switch {
		case s.failIDs[it.ID]:
			res.Error = "internal error"
		case ok && existing.Version > it.BaseVersion:
			res.Conflict = true
			res.ServerVersion = existing.Version
		default:
			s.version++
			s.records[it.ID] = models.Record{ID: it.ID, Kind: it.Kind, Payload: it.Payload, Deleted: it.Deleted, Version: s.version}
			res.Accepted = true
			res.Version = s.version
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *fakeServer) changes(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := []models.Record{}
	for _, rec := range s.records {
		if rec.Version > since {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Version < recs[j].Version })
	writeJSON(w, http.StatusOK, models.ChangeSet{Records: recs, Version: s.version})
}

// put stores a change made by another device.
func (s *fakeServer) put(id string, kind models.RecordKind, payload json.RawMessage, deleted bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.records[id] = models.Record{ID: id, Kind: kind, Payload: payload, Deleted: deleted, Version: s.version}
	return s.version
}

func (s *fakeServer) get(id string) (models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *fakeServer) counts() (pushes, requests int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes, s.requests
}

func (s *fakeServer) setProfileStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileStatus = status
}

// rotateAccessToken makes the server reject every other access token and
// hand out tok on refresh.
func (s *fakeServer) rotateAccessToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = tok
}

func (s *fakeServer) setFailing(id string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fail {
		s.failIDs[id] = true
	} else {
		delete(s.failIDs, id)
	}
}
