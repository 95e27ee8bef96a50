// Package api serves stored leaderboard records and harvest history over
// a read-only JSON API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/mindshare-cli/internal/model"
	"github.com/sells-group/mindshare-cli/internal/store"
)

const defaultLimit = 100

type recordsQuery struct {
	Project string `validate:"max=256"`
	Period  string `validate:"omitempty,oneof=30d 7d epoch-1 epoch-2"`
	Limit   int    `validate:"min=1,max=100000"`
}

type runsQuery struct {
	Status string `validate:"omitempty,oneof=running complete interrupted failed"`
	Limit  int    `validate:"min=1,max=1000"`
}

// recordView is the JSON shape of a record; keys follow model.Columns.
type recordView struct {
	Project             string   `json:"project"`
	Period              string   `json:"period"`
	Position            *int64   `json:"position"`
	PositionChange      *int64   `json:"positionChange"`
	MindsharePercentage *float64 `json:"mindsharePercentage"`
	RelativeMindshare   *float64 `json:"relativeMindshare"`
	ID                  *string  `json:"id"`
	Name                *string  `json:"name"`
	Rank                *string  `json:"rank"`
	Score               *string  `json:"score"`
	ScorePercentile     *string  `json:"scorePercentile"`
	ScoreQuantile       *string  `json:"scoreQuantile"`
	Username            *string  `json:"username"`
}

func toView(r model.Record) recordView {
	return recordView{
		Project:             r.Project,
		Period:              string(r.Period),
		Position:            r.Position,
		PositionChange:      r.PositionChange,
		MindsharePercentage: r.MindsharePercentage,
		RelativeMindshare:   r.RelativeMindshare,
		ID:                  r.ID,
		Name:                r.Name,
		Rank:                r.Rank,
		Score:               r.Score,
		ScorePercentile:     r.ScorePercentile,
		ScoreQuantile:       r.ScoreQuantile,
		Username:            r.Username,
	}
}

// Server holds the handlers' dependencies. Runs may be nil.
type Server struct {
	records  store.RecordStore
	runs     store.RunLog
	validate *validator.Validate
	log      *zap.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(records store.RecordStore, runs store.RunLog) http.Handler {
	s := &Server{
		records:  records,
		runs:     runs,
		validate: validator.New(),
		log:      zap.L().With(zap.String("component", "api")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/records", s.listRecords)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRecords filters by project and period and caps the result at limit.
func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}
	params := recordsQuery{Project: q.Get("project"), Period: q.Get("period"), Limit: limit}
	if err := s.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, queryError(err))
		return
	}
	project := params.Project
	period := model.Period(params.Period)

	records, err := s.records.Load(r.Context())
	if err != nil {
		s.log.Error("load records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}

	out := make([]recordView, 0, min(limit, len(records)))
	for _, rec := range records {
		if project != "" && rec.Project != project {
			continue
		}
		if period != "" && rec.Period != period {
			continue
		}
		out = append(out, toView(rec))
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run log not configured")
		return
	}
	q := r.URL.Query()
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}
	params := runsQuery{Status: q.Get("status"), Limit: limit}
	if err := s.validate.Struct(params); err != nil {
		writeError(w, http.StatusBadRequest, queryError(err))
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(params.Status),
		Limit:  params.Limit,
	})
	if err != nil {
		s.log.Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run log not configured")
		return
	}
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

// queryError names the first rejected query parameter.
func queryError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("invalid %s: failed %s", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
	}
	return "invalid query"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
