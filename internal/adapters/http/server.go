// Package http exposes a read-only view of the trial store over HTTP,
// plus the Prometheus scrape endpoint.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/ports"
	"github.com/epistimio/kleio/pkg/trial"
)

// Server serves the trial API.
type Server struct {
	store ports.Store
	log   *slog.Logger
}

// NewHandler builds the router. The registry carries the process metrics
// and gets the live trial-status collector registered on top.
func NewHandler(store ports.Store, log *slog.Logger, reg *prometheus.Registry) http.Handler {
	s := &Server{store: store, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1/trials", func(r chi.Router) {
		r.Get("/", s.listTrials)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getTrial)
			r.Get("/stdout", s.streamHandler(domain.AttrStdout))
			r.Get("/stderr", s.streamHandler(domain.AttrStderr))
			r.Get("/statistics", s.getStatistics)
		})
	})

	return r
}

// trialDetail is the full JSON view of one trial.
type trialDetail struct {
	Trial    *domain.Trial  `json:"trial"`
	Report   *domain.Report `json:"report,omitempty"`
	Children []string       `json:"children,omitempty"`
}

// listTrials handles GET /v1/trials?tags=a;b.
func (s *Server) listTrials(w http.ResponseWriter, r *http.Request) {
	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ";")
	}

	reports, err := s.store.ListReports(r.Context(), tags)
	if err != nil {
		s.fail(w, err)
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	s.writeJSON(w, reports)
}

// getTrial handles GET /v1/trials/{id}, accepting short IDs.
func (s *Server) getTrial(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolve(w, r)
	if !ok {
		return
	}

	t, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	detail := trialDetail{Trial: t}
	if report, err := s.store.LoadReport(r.Context(), id); err == nil {
		detail.Report = &report
	}
	if children, err := s.store.Children(r.Context(), id); err == nil {
		detail.Children = children
	}
	s.writeJSON(w, detail)
}

// streamHandler serves one lineage output stream as text/plain, with
// ?since=N resuming after a sequence number for tail-style polling.
func (s *Server) streamHandler(attr domain.Attribute) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.resolve(w, r)
		if !ok {
			return
		}

		since := uint64(0)
		if raw := r.URL.Query().Get("since"); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				http.Error(w, "invalid since parameter", http.StatusBadRequest)
				return
			}
			since = n
		}

		var lines []string
		var lastSeq uint64
		if since > 0 {
			// Explicit offsets address the trial's own stream, not the
			// lineage view, so sequence numbers stay stable.
			events, err := s.store.Events(r.Context(), id, attr, since)
			if err != nil {
				s.fail(w, err)
				return
			}
			for _, ev := range events {
				lines = append(lines, ev.Item)
				lastSeq = ev.Seq
			}
		} else {
			view, err := trial.NewView(r.Context(), s.store, id)
			if err != nil {
				s.fail(w, err)
				return
			}
			lines, err = view.Stdout(r.Context())
			if attr == domain.AttrStderr {
				lines, err = view.Stderr(r.Context())
			}
			if err != nil {
				s.fail(w, err)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if lastSeq > 0 {
			w.Header().Set("X-Kleio-Last-Seq", strconv.FormatUint(lastSeq, 10))
		}
		for _, line := range lines {
			w.Write([]byte(line))
			w.Write([]byte("\n"))
		}
	}
}

// getStatistics handles GET /v1/trials/{id}/statistics, returning the
// lineage's statistic series keyed by name.
func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := s.resolve(w, r)
	if !ok {
		return
	}

	view, err := trial.NewView(r.Context(), s.store, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	stats, err := view.Statistics(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	series := map[string][]domain.Point{}
	for _, name := range stats.Names() {
		series[name] = stats.Series(name)
	}
	s.writeJSON(w, series)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.store.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to encode response", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTrialNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrAmbiguousID):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
