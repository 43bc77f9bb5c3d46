package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ludex/internal/api"
	"ludex/internal/config"
	"ludex/internal/feed"
	"ludex/internal/logging"
	"ludex/internal/services"
)

// apiServer exposes the daemon over HTTP for the CLI and web frontends.
// Commands run synchronously; only scan triggering is asynchronous.
type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, daemon *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: daemon,
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "api-server", "start",
			"listen on "+s.bind, err)
	}
	s.listener = listener

	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = server

	go func() {
		// Serve the captured server: s.server may already be nil here when
		// stop() won the race after an immediate cancellation.
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server terminated", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.log().Info("api server listening", logging.String("bind", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.log().Warn("api server shutdown", logging.Error(err))
	}
	s.server = nil
}

// addr returns the bound address, useful when bind requested port 0.
func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/library", s.handleLibrary)
	mux.HandleFunc("/api/library/suggestions", s.handleSuggestions)
	mux.HandleFunc("/api/canonical/", s.handleCanonical)
	mux.HandleFunc("/api/clusters/", s.handleCluster)
	mux.HandleFunc("/api/instances/promote", s.handlePromote)
	mux.HandleFunc("/api/instances/unmerge", s.handleUnmerge)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/status", s.handleStatus)
	return withRequestID(mux)
}

// withRequestID stamps a fresh correlation id onto each request context so
// log lines emitted while serving it can be traced back to one API call.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := r.URL.Query()
	query := feed.Query{
		Type:   feed.EntryType(params.Get("type")),
		Search: params.Get("search"),
	}
	if v := params.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			query.Limit = n
		}
	}
	if v := params.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			query.Offset = n
		}
	}

	entries, err := s.daemon.feed.Entries(r.Context(), query)
	if err != nil {
		writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.EntriesResponse{Entries: api.FromEntries(entries)})
}

func (s *apiServer) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	suggestions, err := s.daemon.feed.Suggestions(r.Context())
	if err != nil {
		writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.SuggestionsResponse{Suggestions: api.FromSuggestions(suggestions)})
}

func (s *apiServer) handleCanonical(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/canonical/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ctx := r.Context()
	game, err := s.daemon.store.Canonical(ctx, id)
	if err != nil {
		writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	if game == nil {
		writeError(w, http.StatusNotFound, "canonical game not found")
		return
	}

	instances, err := s.daemon.store.ListLinkedInstances(ctx, id)
	if err != nil {
		writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	links, err := s.daemon.store.ListLinks(ctx, id)
	if err != nil {
		writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.FromCanonicalDetail(game, instances, links))
}

func (s *apiServer) handleCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/clusters/")
	idPart, action, found := strings.Cut(rest, "/")
	if !found {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	clusterID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "invalid cluster id")
		return
	}

	switch action {
	case "accept":
		var req api.AcceptRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.daemon.resolver.Accept(r.Context(), clusterID, req.CanonicalID); err != nil {
			writeError(w, services.HTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, api.OKResponse{Status: "accepted"})
	case "reject":
		if err := s.daemon.resolver.Reject(r.Context(), clusterID); err != nil {
			writeError(w, services.HTTPStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, api.OKResponse{Status: "rejected"})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handlePromote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.PromoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	game, err := s.daemon.resolver.PromoteOrphan(r.Context(), req.FolderPath, req.Title)
	if err != nil {
		writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.PromoteResponse{Game: api.FromCanonical(game)})
}

func (s *apiServer) handleUnmerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.UnmergeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.daemon.resolver.Unmerge(r.Context(), req.FolderPath); err != nil {
		writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.OKResponse{Status: "unmerged"})
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.daemon.TriggerScan("api") {
		writeJSON(w, http.StatusAccepted, api.OKResponse{Status: "scan triggered"})
		return
	}
	writeJSON(w, http.StatusAccepted, api.OKResponse{Status: "scan already pending"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := s.daemon.Status(r.Context())
	writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DBPath:       status.DBPath,
		LockFilePath: status.LockFilePath,
		Stats:        api.FromHealthSummary(status.Stats),
		Checks:       api.FromPreflight(status.Checks),
	})
}

// decodeBody fills req from the request body, treating an empty body as a
// zero request so POSTs without payloads stay valid.
func decodeBody(r *http.Request, req any) error {
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("api response encoding failed", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
