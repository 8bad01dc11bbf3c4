package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/persistence"
)

const maxListLimit = 100

// handleScan builds a fresh risk report for the mint in the path. Bad
// mints are the caller's fault (400); anything else is ours (500).
// Degraded sources do not fail the scan, they ride along in the report.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	timer := s.metrics.StartScanTimer()

	rep, err := s.deps.Assembler.BuildRiskReport(r.Context(), mint)
	if err != nil {
		var invalid *domain.InvalidInputError
		if errors.As(err, &invalid) {
			timer.Stop("invalid")
			s.metrics.RecordScanError("invalid_input")
			writeError(w, http.StatusBadRequest, invalid.Error())
			return
		}
		timer.Stop("error")
		s.metrics.RecordScanError("internal")
		requestID, _ := r.Context().Value(requestIDKey).(string)
		log.Error().
			Err(err).
			Str("request_id", requestID).
			Str("mint", mint).
			Msg("scan failed")
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	timer.Stop("ok")
	s.metrics.ObserveOverall(rep.Overall)
	s.metrics.RecordDegraded(rep.Degraded)
	s.syncProviderMetrics()
	s.persistReport(rep)
	s.hub.Broadcast(rep)
	writeJSON(w, http.StatusOK, rep)
}

// handleHealth reports service status plus per-dependency detail. The
// endpoint always answers 200; "status" flips to degraded when a fact
// source or the store is unwell.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	resp := map[string]interface{}{
		"version":            s.deps.Version,
		"uptime":             time.Since(s.started).Round(time.Second).String(),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"stream_subscribers": s.hub.Count(),
	}

	if s.deps.Providers != nil {
		health := s.deps.Providers.Health()
		states := s.deps.Providers.BreakerStates()
		s.metrics.SyncProviders(health, states)
		for _, snap := range health {
			if !snap.Healthy {
				status = "degraded"
			}
		}
		resp["sources"] = health
		resp["breakers"] = states
	}
	if s.deps.Cache != nil {
		resp["cache"] = s.deps.Cache.Stats()
	}
	if s.deps.Budget != nil {
		resp["budgets"] = s.deps.Budget.Statuses()
	}
	if s.deps.DB != nil {
		check := s.deps.DB.Health().Health(r.Context())
		if s.deps.DB.IsEnabled() && !check.Healthy {
			status = "degraded"
		}
		resp["persistence"] = check
	}

	resp["status"] = status
	writeJSON(w, http.StatusOK, resp)
}

// handleRecentReports lists the newest stored reports across all mints.
func (s *Server) handleRecentReports(w http.ResponseWriter, r *http.Request) {
	repo := s.reportsRepo()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	limit := parseLimit(r, 20)
	records, err := repo.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("recent reports query failed")
		writeError(w, http.StatusInternalServerError, "report listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": records,
		"count":   len(records),
	})
}

// handleMintReports lists stored reports for one mint.
func (s *Server) handleMintReports(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]
	if err := domain.ValidateMint(mint); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	repo := s.reportsRepo()
	if repo == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	limit := parseLimit(r, 20)
	records, err := repo.ListByMint(r.Context(), mint, limit)
	if err != nil {
		log.Error().Err(err).Str("mint", mint).Msg("mint reports query failed")
		writeError(w, http.StatusInternalServerError, "report listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mint":    mint,
		"reports": records,
		"count":   len(records),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

// reportsRepo returns the store, or nil when persistence is off.
func (s *Server) reportsRepo() persistence.ReportsRepo {
	if s.deps.DB == nil || !s.deps.DB.IsEnabled() || s.deps.DB.Repository() == nil {
		return nil
	}
	return s.deps.DB.Repository().Reports
}

// persistReport stores the report best-effort. Scans already returned
// to the caller must not fail on storage trouble, so errors only log.
// A duplicate ID means the report is already stored, which is fine.
func (s *Server) persistReport(rep *domain.RiskReport) {
	repo := s.reportsRepo()
	if repo == nil {
		return
	}
	timer := s.metrics.StartStepTimer("persist")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := repo.Insert(ctx, persistence.NewReportRecord(rep))
	switch {
	case err == nil:
		timer.Stop("ok")
	case errors.Is(err, persistence.ErrDuplicateReport):
		timer.Stop("duplicate")
	default:
		timer.Stop("error")
		log.Warn().Err(err).Str("mint", rep.Mint).Msg("report persistence failed")
	}
}

func (s *Server) syncProviderMetrics() {
	if s.deps.Providers == nil {
		return
	}
	s.metrics.SyncProviders(s.deps.Providers.Health(), s.deps.Providers.BreakerStates())
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
