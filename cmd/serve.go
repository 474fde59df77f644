package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/labelsense/labelsense/internal/config"
	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/internal/pipeline"
	"github.com/labelsense/labelsense/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			store:    env.Store,
			pipeline: env.Pipeline,
			analysis: cfg.Analysis,
			limiter:  newClientLimiter(cfg.Server.AnalyzePerMin, cfg.Server.AnalyzeBurst),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(cfg.Server),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// analyzer is the slice of the pipeline the HTTP layer needs.
type analyzer interface {
	Analyze(ctx context.Context, rawText string, profile model.HealthProfile, language string) (*model.AnalysisResult, error)
}

type apiServer struct {
	store    store.Store
	pipeline analyzer
	analysis config.AnalysisConfig
	limiter  *clientLimiter
}

func (s *apiServer) routes(serverCfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	origins := serverCfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.limiter.middleware).Post("/scans/analyze", s.handleAnalyze)
		r.Get("/scans", s.handleListScans)
		r.Get("/scans/{id}", s.handleGetScan)
		r.Delete("/scans/{id}", s.handleDeleteScan)
		r.Get("/profiles/{userID}", s.handleGetProfile)
		r.Put("/profiles/{userID}", s.handlePutProfile)
	})

	return r
}

type analyzeRequest struct {
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	RawText  string `json:"raw_text"`
	Language string `json:"language"`
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.RawText == "" {
		writeError(w, http.StatusBadRequest, "raw_text is required")
		return
	}
	language := req.Language
	if language == "" {
		language = s.analysis.Language
	}

	profile := model.HealthProfile{}
	stored, err := s.store.GetHealthProfile(r.Context(), req.UserID)
	switch {
	case err == nil:
		profile = *stored
	case eris.Is(err, store.ErrNotFound):
		// analysis proceeds without personalization
	default:
		zap.L().Error("profile lookup failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}

	result, err := s.pipeline.Analyze(r.Context(), req.RawText, profile, language)
	if err != nil {
		zap.L().Error("analysis failed", zap.String("user_id", req.UserID), zap.Error(err))
		if eris.Is(err, pipeline.ErrExtraction) {
			writeError(w, http.StatusUnprocessableEntity, "could not extract ingredients from label text")
			return
		}
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	detail, err := s.store.SaveAnalysis(r.Context(), model.Scan{
		UserID:      req.UserID,
		ProductName: req.Title,
		RawText:     req.RawText,
	}, result)
	if err != nil {
		zap.L().Error("save scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not persist scan")
		return
	}

	writeJSON(w, http.StatusCreated, detail)
}

func (s *apiServer) handleListScans(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	scans, err := s.store.ListScans(r.Context(), store.ScanFilter{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		zap.L().Error("list scans failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list scans")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (s *apiServer) handleGetScan(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetScan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		zap.L().Error("get scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load scan")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteScan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		zap.L().Error("delete scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete scan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.GetHealthProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		zap.L().Error("get profile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *apiServer) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var profile model.HealthProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := s.store.UpsertHealthProfile(r.Context(), userID, profile); err != nil {
		zap.L().Error("upsert profile failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request with status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// limiterIdleTTL is how long a client entry may sit unused before the next
// sweep drops it.
const limiterIdleTTL = 10 * time.Minute

// clientLimiter rate-limits the analyze endpoint per client IP. Each client
// gets a token bucket refilled at perMin requests per minute; idle entries
// are swept so the map does not grow for the life of the process.
type clientLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(perMin, burst int) *clientLimiter {
	if perMin <= 0 {
		perMin = 30
	}
	if burst <= 0 {
		burst = 5
	}
	return &clientLimiter{
		clients:   make(map[string]*clientEntry),
		limit:     rate.Limit(float64(perMin) / 60.0),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (cl *clientLimiter) allow(clientIP string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	now := time.Now()
	cl.sweepLocked(now)
	e, ok := cl.clients[clientIP]
	if !ok {
		e = &clientEntry{lim: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[clientIP] = e
	}
	e.lastSeen = now
	return e.lim.Allow()
}

// sweepLocked drops entries idle for at least limiterIdleTTL. Runs at most
// once per TTL interval; callers hold cl.mu.
func (cl *clientLimiter) sweepLocked(now time.Time) {
	if now.Sub(cl.lastSweep) < limiterIdleTTL {
		return
	}
	cl.lastSweep = now
	for ip, e := range cl.clients {
		if now.Sub(e.lastSeen) >= limiterIdleTTL {
			delete(cl.clients, ip)
		}
	}
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !cl.allow(host) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
