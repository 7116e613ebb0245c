// Package server exposes roleplay and chat sessions to a browser front-end
// over a websocket. The browser keeps speech capture and playback; the
// server owns the turn engine, the tutor and the language policy.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"speakgenie/internal/clock"
	"speakgenie/internal/domain/language"
	"speakgenie/internal/domain/library"
	"speakgenie/internal/speak/metrics"
	"speakgenie/internal/speak/roleplay"
	"speakgenie/internal/speak/tutor"
)

type Options struct {
	Catalog          *library.Catalog
	Policy           *language.Policy
	Tutor            tutor.Provider
	Metrics          *metrics.Metrics
	Clock            clock.Clock
	Roleplay         roleplay.Config
	AdvisoryDuration time.Duration
	DefaultLanguage  language.Tag
	// AllowedOrigins restricts browser origins; empty allows any.
	AllowedOrigins []string
}

type Server struct {
	opts     Options
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
	baseCtx  context.Context
}

func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, errors.New("server: catalog is required")
	}
	if opts.Tutor == nil {
		return nil, errors.New("server: tutor is required")
	}
	if opts.Policy == nil {
		opts.Policy = language.DefaultPolicy()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Roleplay == (roleplay.Config{}) {
		opts.Roleplay = roleplay.DefaultConfig()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = language.Default
	}

	s := &Server{
		opts:     opts,
		metrics:  opts.Metrics,
		sessions: make(map[string]*session),
		baseCtx:  context.Background(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s, nil
}

// Handler routes the websocket, the read-only API, health and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/api/scenarios", s.handleScenarios)
	mux.HandleFunc("/api/languages", s.handleLanguages)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Run serves on addr until ctx is cancelled, then closes every session and
// shuts the listener down.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", addr).Info("SpeakGenie server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.closeSessions()
		err := httpSrv.Shutdown(shutdownCtx)
		s.wg.Wait()
		return err
	})

	return g.Wait()
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	sess := newSession(uuid.NewString(), s, conn)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	ctx := s.baseCtx
	s.wg.Add(1)
	s.mu.Unlock()
	s.metrics.SessionOpened()
	sess.log.Info("Session opened")

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		s.metrics.SessionClosed()
		sess.log.Info("Session closed")
		s.wg.Done()
	}()

	sess.run(ctx)
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.cancel()
	}
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		sc, err := s.opts.Catalog.Find(id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sc)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Catalog.Libraries())
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Policy.All())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("Failed to write response")
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return true
	}
	host := strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")

	for _, allowed := range s.opts.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, host) {
			return true
		}
	}
	return false
}
