// Package server exposes the BOM ingest endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
	"github.com/ortelius/ms-dep-pkg-cud/importer"
	"github.com/ortelius/ms-dep-pkg-cud/importer/safetydb"
	"github.com/ortelius/ms-dep-pkg-cud/worker"
)

const (
	detailUpdated    = "components updated successfully"
	detailNotUpdated = "components not updated"

	enrichTaskName = "enrich-vulnerabilities"
)

var ErrInvalidCompID = errors.New("invalid compid")

// SnapshotSource provides the insecure package database used for Safety
// reports.
type SnapshotSource interface {
	Get(ctx context.Context) safetydb.Snapshot
}

type Enricher interface {
	Enrich(ctx context.Context) error
}

// Scheduler runs tasks without blocking the caller.
type Scheduler interface {
	Submit(name string, task worker.Task) bool
}

type Server struct {
	DB        *gorm.DB
	Writer    *deppkg.Writer
	Auth      Authorizer
	Snapshots SnapshotSource
	// Enricher is scheduled after every SPDX ingest. Enrichment is disabled
	// when it is nil.
	Enricher  Enricher
	Scheduler Scheduler
}

type statusMsg struct {
	Status      string `json:"status"`
	ServiceName string `json:"service_name"`
}

type detailMsg struct {
	Detail string `json:"detail"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("POST /msapi/deppkg/cyclonedx", s.ingest(deppkg.DependencyTypeLicense, s.normalizeCycloneDX))
	mux.Handle("POST /msapi/deppkg/spdx", s.ingest(deppkg.DependencyTypeSPDX, s.normalizeSPDX))
	mux.Handle("POST /msapi/deppkg/safety", s.ingest(deppkg.DependencyTypeCVE, s.normalizeSafety))
	return logRequests(mux)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := deppkg.Ping(r.Context(), s.DB); err != nil {
		slog.Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, statusMsg{Status: "DOWN", ServiceName: deppkg.ServiceName})
		return
	}
	writeJSON(w, http.StatusOK, statusMsg{Status: "UP", ServiceName: deppkg.ServiceName})
}

type normalizeFunc func(ctx context.Context, body io.Reader, compID int) ([]deppkg.ComponentDep, error)

func (s *Server) ingest(depType deppkg.DependencyType, normalize normalizeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		compID, err := ParseCompID(r.URL.Query().Get("compid"))
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		if err := s.Auth.Authorize(r); err != nil {
			slog.Warn("request not authorized", "compid", compID, "err", err)
			writeDetail(w, http.StatusUnauthorized, err.Error())
			return
		}

		records, err := normalize(r.Context(), r.Body, compID)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		updated, err := s.Writer.Save(r.Context(), compID, depType, records)
		if err != nil {
			slog.Error("could not save components", "compid", compID, "deptype", depType, "err", err)
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}

		if depType == deppkg.DependencyTypeSPDX {
			s.scheduleEnrichment()
		}

		if !updated {
			writeDetail(w, http.StatusOK, detailNotUpdated)
			return
		}
		writeDetail(w, http.StatusCreated, detailUpdated)
	}
}

func (s *Server) scheduleEnrichment() {
	if s.Enricher == nil || s.Scheduler == nil {
		return
	}
	s.Scheduler.Submit(enrichTaskName, s.Enricher.Enrich)
}

func (s *Server) normalizeCycloneDX(ctx context.Context, body io.Reader, compID int) ([]deppkg.ComponentDep, error) {
	bom, err := importer.DecodeCycloneDX(body)
	if err != nil {
		return nil, err
	}
	return importer.NormalizeCycloneDX(bom, compID), nil
}

func (s *Server) normalizeSPDX(ctx context.Context, body io.Reader, compID int) ([]deppkg.ComponentDep, error) {
	doc, err := importer.DecodeSPDX(body)
	if err != nil {
		return nil, err
	}
	return importer.NormalizeSPDX(doc, compID), nil
}

func (s *Server) normalizeSafety(ctx context.Context, body io.Reader, compID int) ([]deppkg.ComponentDep, error) {
	report, err := importer.DecodeSafety(body)
	if err != nil {
		return nil, err
	}

	snapshot := safetydb.Snapshot{}
	if s.Snapshots != nil {
		snapshot = s.Snapshots.Get(ctx)
	}
	return importer.NormalizeSafety(report, compID, snapshot), nil
}

// ParseCompID parses the mandatory compid query parameter.
func ParseCompID(value string) (int, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: missing", ErrInvalidCompID)
	}
	compID, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidCompID, value)
	}
	return compID, nil
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailMsg{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("could not write response", "err", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info(
			"request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
