// Package server exposes the zipline engine over HTTP: archive upload
// and staging, index build/dump/load orchestration, and search.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wizenheimer/zipline"
	"github.com/wizenheimer/zipline/web"
)

// ErrStatePoisoned reports that the guarded index slot was observed in
// an impossible state. It maps the fatal-concurrency branch of the error
// taxonomy; with a correctly constructed Server it is unreachable.
var ErrStatePoisoned = errors.New("index state poisoned")

const (
	intermediateName = "data.jsonl"
	snapshotName     = "index.mpk"
)

// Config holds the service's filesystem and network configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string

	// StagingDir receives uploaded archives. Owned by the service:
	// /clear deletes and recreates it.
	StagingDir string

	// StateDir holds the intermediate file and the snapshot.
	StateDir string
}

// Server owns the single mutable slot holding the current index.
//
// Searches take the read lock and share it; build and load construct the
// replacement OUTSIDE the lock and then swap the pointer under the write
// lock, so readers always observe either the old or the new index in
// full, never a mix, and a failed build leaves the old index installed.
type Server struct {
	cfg Config
	log zerolog.Logger

	mu    sync.RWMutex
	index *zipline.Index

	// stagingMu serializes staging-dir mutation (upload, clear,
	// delete_zip) and the intermediate rewrite that follows it.
	stagingMu sync.Mutex
}

// New creates a Server with an empty index installed and its directories
// in place.
func New(cfg Config, log zerolog.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Server{
		cfg:   cfg,
		log:   log,
		index: zipline.NewIndex(),
	}, nil
}

func (s *Server) intermediatePath() string {
	return filepath.Join(s.cfg.StateDir, intermediateName)
}

func (s *Server) snapshotPath() string {
	return filepath.Join(s.cfg.StateDir, snapshotName)
}

// currentIndex returns the installed index under the read lock.
func (s *Server) currentIndex() (*zipline.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, ErrStatePoisoned
	}
	return s.index, nil
}

// install swaps in a freshly built or loaded index.
func (s *Server) install(idx *zipline.Index) {
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Post("/upload", s.handleUpload)
	r.Post("/build", s.handleBuild)
	r.Post("/clear", s.handleClear)
	r.Post("/dump", s.handleDump)
	r.Post("/load", s.handleLoad)
	r.Get("/get_zips", s.handleGetZips)
	r.Post("/delete_zip", s.handleDeleteZip)
	r.Post("/search", s.handleSearch)
	r.Get("/stats", s.handleStats)

	r.Handle("/dashboard/*", http.StripPrefix("/dashboard/", http.FileServerFS(web.Static)))

	return r
}

// ListenAndServe runs the service until the listener fails.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
	return http.ListenAndServe(s.cfg.Addr, s.Router())
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Msg("request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintln(w, "zipline: full-text search over archive listings")
}

// regenerateIntermediate rescans the staging dir and rewrites the
// intermediate file. Callers hold stagingMu.
func (s *Server) regenerateIntermediate() error {
	records, err := zipline.ScanStagingDir(s.cfg.StagingDir)
	if err != nil {
		return err
	}
	return zipline.WriteIntermediate(s.intermediatePath(), records)
}

// listStagedZips returns the sorted staged archive names. Callers that
// mutate based on the listing hold stagingMu.
func (s *Server) listStagedZips() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("read staging dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		s.httpError(w, http.StatusBadRequest, fmt.Errorf("multipart field %q: %w", "file", err))
		return
	}
	defer file.Close()

	s.stagingMu.Lock()
	defer s.stagingMu.Unlock()

	name := uuid.New().String() + ".zip"
	dst, err := os.Create(filepath.Join(s.cfg.StagingDir, name))
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	if err := dst.Close(); err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.regenerateIntermediate(); err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}

	s.log.Info().Str("zip", name).Msg("archive staged")
	s.respondJSON(w, map[string]string{"name": name})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	s.stagingMu.Lock()
	err := s.regenerateIntermediate()
	s.stagingMu.Unlock()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}

	idx, err := zipline.BuildIndex(s.intermediatePath())
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	s.install(idx)
	s.respondJSON(w, idx.Stats())
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.stagingMu.Lock()
	defer s.stagingMu.Unlock()

	if err := os.RemoveAll(s.cfg.StagingDir); err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	if err := os.MkdirAll(s.cfg.StagingDir, 0o755); err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDump(w http.ResponseWriter, _ *http.Request) {
	idx, err := s.currentIndex()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	if err := zipline.DumpSnapshotFile(idx, s.snapshotPath()); err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLoad(w http.ResponseWriter, _ *http.Request) {
	idx, err := zipline.LoadSnapshotFile(s.snapshotPath())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, zipline.ErrSnapshotCorrupt) {
			status = http.StatusConflict
		}
		s.httpError(w, status, err)
		return
	}
	s.install(idx)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetZips(w http.ResponseWriter, _ *http.Request) {
	s.stagingMu.Lock()
	names, err := s.listStagedZips()
	s.stagingMu.Unlock()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, names)
}

// DeleteZipRequest names a staged archive both by its position in the
// sorted listing and by name; the delete only proceeds when both agree.
// The positional protocol is racy across processes; within this one the
// staging mutex serializes it against uploads and clears.
type DeleteZipRequest struct {
	ZipID   uint   `json:"zip_id"`
	ZipName string `json:"zip_name"`
}

func (s *Server) handleDeleteZip(w http.ResponseWriter, r *http.Request) {
	var req DeleteZipRequest
	if err := decodeJSON(r, &req); err != nil {
		s.httpError(w, http.StatusBadRequest, err)
		return
	}

	s.stagingMu.Lock()
	defer s.stagingMu.Unlock()

	names, err := s.listStagedZips()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	if req.ZipID >= uint(len(names)) || names[req.ZipID] != req.ZipName {
		s.httpError(w, http.StatusBadRequest,
			fmt.Errorf("no staged archive %d named %q", req.ZipID, req.ZipName))
		return
	}
	if err := os.Remove(filepath.Join(s.cfg.StagingDir, req.ZipName)); err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SearchData is the /search request body.
type SearchData struct {
	Terms     []string `json:"terms"`
	MaxLength *int     `json:"max_length"`
	MinScore  *float64 `json:"min_score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchData
	if err := decodeJSON(r, &req); err != nil {
		s.httpError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", zipline.ErrInvalidQuery, err))
		return
	}

	idx, err := s.currentIndex()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}

	result := idx.Search(req.Terms, zipline.SearchOptions{
		MaxLength: req.MaxLength,
		MinScore:  req.MinScore,
	})
	s.respondJSON(w, result)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	idx, err := s.currentIndex()
	if err != nil {
		s.httpError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, idx.Stats())
}

func (s *Server) httpError(w http.ResponseWriter, status int, err error) {
	s.log.Error().Err(err).Int("status", status).Msg("request failed")
	http.Error(w, err.Error(), status)
}
