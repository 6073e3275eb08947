// Package lookup serves the read-only HTTP API over the ledger: entity
// lookups by human identifier and transaction lookups from the tx index.
package lookup

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blockberries/ledgerberry/indexer"
	"github.com/blockberries/ledgerberry/keys"
	"github.com/blockberries/ledgerberry/logging"
	"github.com/blockberries/ledgerberry/metrics"
)

// NotImplemented is the body served for entity listings.
const NotImplemented = "not implemented yet"

// Server errors.
var (
	ErrNoBackend      = errors.New("lookup backend is required")
	ErrInvalidCache   = errors.New("lookup cache size must be positive")
	ErrAlreadyStarted = errors.New("lookup server already started")
)

// Backend resolves entities by public key.
type Backend interface {
	// Lookup returns the JSON-serializable view of the entity stored under
	// pubKey, or false when there is none.
	Lookup(ctx context.Context, pubKey []byte) (any, bool, error)

	// EntityName is the singular entity noun used in error bodies.
	EntityName() string

	// Route is the plural path segment entities are served under.
	Route() string
}

// Config holds the HTTP server settings.
type Config struct {
	ListenAddr   string
	CacheSize    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the default lookup settings.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":3001",
		CacheSize:    1024,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the lookup HTTP server.
type Server struct {
	cfg     Config
	backend Backend
	indexer indexer.TxIndexer
	metrics metrics.Metrics
	logger  *logging.Logger

	// ids caches identifier → public key derivations.
	ids *lru.Cache[string, []byte]

	router     chi.Router
	httpServer *http.Server
	listener   net.Listener
	running    atomic.Bool
}

// NewServer creates a lookup server over backend.
func NewServer(cfg Config, backend Backend, opts ...Option) (*Server, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	if cfg.CacheSize <= 0 {
		return nil, ErrInvalidCache
	}
	ids, err := lru.New[string, []byte](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating id cache: %w", err)
	}

	st := defaultSettings()
	for _, opt := range opts {
		opt(&st)
	}

	s := &Server{
		cfg:     cfg,
		backend: backend,
		indexer: st.indexer,
		metrics: st.metrics,
		logger:  st.logger.WithComponent("lookup"),
		ids:     ids,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Get("/txs/{hash}", s.handleTx)

	route := "/" + s.backend.Route()
	r.Get(route, s.handleList)
	r.Get(route+"/{id}", s.handleEntity)
	r.Get(route+"/{id}/txs", s.handleEntityTxs)
	return r
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving on the configured address.
func (s *Server) Start() error {
	if s.running.Swap(true) {
		return ErrAlreadyStarted
	}

	listener, err := net.Listen("tcp", strings.TrimPrefix(s.cfg.ListenAddr, "tcp://"))
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("lookup server stopped", logging.Error(err))
		}
	}()

	s.logger.Info("lookup server started", logging.Address(listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown lookup server: %w", err)
	}
	return nil
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.ListenAddr
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.IncLookups(route, status)
		s.logger.Debug("lookup request",
			"method", r.Method,
			"route", route,
			"status", status,
			logging.Duration(time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotImplemented)
	_, _ = w.Write([]byte(NotImplemented))
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	pubKey, ok := s.resolve(w, r)
	if !ok {
		return
	}

	view, found, err := s.backend.Lookup(r.Context(), pubKey)
	if err != nil {
		s.logger.Error("entity lookup failed", logging.PubKey(pubKey), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, s.backend.EntityName()+" not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEntityTxs(w http.ResponseWriter, r *http.Request) {
	pubKey, ok := s.resolve(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recs, err := s.indexer.ByPubKey(pubKey, limit)
	if err != nil {
		s.logger.Error("tx index scan failed", logging.PubKey(pubKey), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "tx index unavailable")
		return
	}

	views := make([]*TxView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, newTxView(rec))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTx(w http.ResponseWriter, r *http.Request) {
	hash, err := hex.DecodeString(chi.URLParam(r, "hash"))
	if err != nil || len(hash) == 0 {
		writeError(w, http.StatusBadRequest, "invalid tx hash")
		return
	}

	rec, err := s.indexer.Get(hash)
	switch {
	case errors.Is(err, indexer.ErrTxNotFound):
		writeError(w, http.StatusNotFound, "tx not found")
	case err != nil:
		s.logger.Error("tx index read failed", logging.TxHash(hash), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "tx index unavailable")
	default:
		writeJSON(w, http.StatusOK, newTxView(rec))
	}
}

// resolve derives the public key named by the id path parameter, writing a
// 400 when it cannot name an entity. chi matches on the escaped path when the
// request has one, so the parameter is unescaped in that case.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath != "" {
		var err error
		if id, err = url.PathUnescape(id); err != nil {
			writeError(w, http.StatusBadRequest, "invalid id")
			return nil, false
		}
	}
	if pub, ok := s.ids.Get(id); ok {
		return pub, true
	}
	kp, err := keys.DeriveKeyPair(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	pub := []byte(kp.PubKey)
	s.ids.Add(id, pub)
	return pub, true
}

// TxView is the JSON form of an indexed transaction.
type TxView struct {
	Hash    string   `json:"hash"`
	Height  int64    `json:"height"`
	Code    uint32   `json:"code"`
	Result  string   `json:"result"`
	Log     string   `json:"log,omitempty"`
	PubKeys []string `json:"pub_keys"`
}

func newTxView(rec *indexer.TxRecord) *TxView {
	v := &TxView{
		Hash:    hex.EncodeToString(rec.Hash),
		Height:  rec.Height,
		Code:    uint32(rec.Code),
		Result:  rec.Code.String(),
		Log:     rec.Log,
		PubKeys: make([]string, len(rec.PubKeys)),
	}
	for i, pk := range rec.PubKeys {
		v.PubKeys[i] = hex.EncodeToString(pk)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
