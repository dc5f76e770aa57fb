package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anef/pdfcp/internal/rest"
	"github.com/anef/pdfcp/internal/utils"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/anef/pdfcp/pkg/program"
	"github.com/anef/pdfcp/pkg/report"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ProgressDTO struct {
	PlannedLineId string `json:"plannedLineId"`
	ComponentId   string `json:"componentId"`
	Year          int    `json:"year"`
	Unit          string `json:"unit"`
	Planned       string `json:"planned"`
	Realised      string `json:"realised"`
	Remaining     string `json:"remaining"`
	Rate          int    `json:"rate"`
	Records       int    `json:"records"`
	// Overshoot is set once the realised figure passes the planned one; BeyondTolerance once it
	// passes the accepted margin as well.
	Overshoot       bool `json:"overshoot"`
	BeyondTolerance bool `json:"beyondTolerance"`
}

type ProgressResponse struct {
	ProgramId     string        `json:"programId"`
	LoadedAt      time.Time     `json:"loadedAt"`
	FailedSources []string      `json:"failedSources"`
	Retryable     bool          `json:"retryable"`
	Lines         []ProgressDTO `json:"lines"`
}

type Handler struct {
	service Service
	clock   utils.Clock
}

func NewHandler(service Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// Comparative godoc
// @Summary Planned / programmed / executed comparison of a programme
// @Description Rows per component, zone and year with totals and unattached lines. Answers CSV when Accept is text/csv.
// @Tags Dashboard
// @Produce json,text/csv
// @Param programId path string true "Programme ID"
// @Param year query []int false "Years (repeatable or comma separated)"
// @Param yearStart query int false "First year of the window"
// @Param yearEnd query int false "Last year of the window"
// @Param zone query []string false "Zones"
// @Param type query []string false "Action types"
// @Param q query string false "Free text search"
// @Success 200 {object} report.Document
// @Failure 400 {object} rest.ErrorResponse "Invalid programme id or filter"
// @Failure 404 {object} rest.ErrorResponse "Programme not found"
// @Failure 503 {object} rest.ErrorResponse "Components unavailable"
// @Router /api/pdfcp/programs/{programId}/comparative [get]
// @Security XUserId
func (h *Handler) Comparative(w http.ResponseWriter, r *http.Request) {
	programId, ok := pathId(w, r)
	if !ok {
		return
	}
	filters, err := ParseFilters(r)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid filter", Details: err.Error()})
		return
	}
	log.Debugf("Comparative view of programme %s with filters %+v", programId, filters)

	view, err := h.service.Comparative(r.Context(), programId, filters)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	doc := report.NewDocument(header(view.Program, view.LoadedAt, view.Failed), view.Result, h.clock.Now())

	if strings.Contains(r.Header.Get("Accept"), "text/csv") {
		body, err := report.RenderCSV(doc)
		if err != nil {
			rest.WriteError(w, http.StatusInternalServerError, rest.ErrorResponse{Error: "failed to render CSV"})
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.Program.Code+"_comparative.csv"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Progress godoc
// @Summary Realisation progress of each planned line
// @Tags Dashboard
// @Produce json
// @Param programId path string true "Programme ID"
// @Success 200 {object} ProgressResponse
// @Failure 400 {object} rest.ErrorResponse "Invalid programme id"
// @Failure 404 {object} rest.ErrorResponse "Programme not found"
// @Failure 503 {object} rest.ErrorResponse "Components unavailable"
// @Router /api/pdfcp/programs/{programId}/progress [get]
// @Security XUserId
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	programId, ok := pathId(w, r)
	if !ok {
		return
	}
	log.Debugf("Progress of programme %s", programId)

	view, err := h.service.Progress(r.Context(), programId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	failed := sourceNames(view.Failed)
	resp := ProgressResponse{
		ProgramId:     view.Program.Id.String(),
		LoadedAt:      view.LoadedAt,
		FailedSources: failed,
		Retryable:     len(failed) > 0,
		Lines:         make([]ProgressDTO, 0, len(view.Progress)),
	}
	for _, p := range view.Progress {
		overshoot, beyond := comparative.CheckOvershoot(p, decimal.Zero)
		resp.Lines = append(resp.Lines, ProgressDTO{
			PlannedLineId:   p.PlannedLineId,
			ComponentId:     p.ComponentId,
			Year:            p.Year,
			Unit:            p.Unit,
			Planned:         p.Planned.String(),
			Realised:        p.Realised.String(),
			Remaining:       p.Remaining.String(),
			Rate:            p.Rate,
			Records:         p.Records,
			Overshoot:       overshoot,
			BeyondTolerance: beyond != nil,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ParseFilters reads the comparative filters from the query string. Years may be repeated or comma
// separated; zones and types are repeatable.
func ParseFilters(r *http.Request) (comparative.Filters, error) {
	query := r.URL.Query()
	var filters comparative.Filters

	for _, raw := range splitValues(query["year"]) {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return comparative.Filters{}, fmt.Errorf("invalid year %q", raw)
		}
		filters.Years = append(filters.Years, year)
	}
	var err error
	if filters.YearStart, err = optionalYear(query.Get("yearStart")); err != nil {
		return comparative.Filters{}, err
	}
	if filters.YearEnd, err = optionalYear(query.Get("yearEnd")); err != nil {
		return comparative.Filters{}, err
	}
	if filters.YearStart != 0 && filters.YearEnd != 0 && filters.YearStart > filters.YearEnd {
		return comparative.Filters{}, fmt.Errorf("yearStart %d is after yearEnd %d", filters.YearStart, filters.YearEnd)
	}
	filters.Zones = splitValues(query["zone"])
	filters.ActionTypes = splitValues(query["type"])
	filters.Search = strings.TrimSpace(query.Get("q"))
	return filters, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func optionalYear(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return year, nil
}

func header(p program.Program, loadedAt time.Time, failed []Source) report.Header {
	return report.Header{
		ProgramId:    p.Id.String(),
		ProgramCode:  p.Code,
		ProgramTitle: p.Title,
		LoadedAt:     loadedAt,
		Failed:       sourceNames(failed),
	}
}

func sourceNames(sources []Source) []string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s))
	}
	return names
}

func pathId(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["programId"]
	id, err := uuid.Parse(raw)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid programId", Details: raw})
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, program.ErrProgramNotFound):
		rest.WriteError(w, http.StatusNotFound, rest.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrSourceUnavailable):
		rest.WriteError(w, http.StatusServiceUnavailable, rest.ErrorResponse{
			Error:     ErrSourceUnavailable.Error(),
			Retryable: true,
			Sources:   []string{string(SourceComponents)},
		})
	default:
		log.Errorf("dashboard request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, rest.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}
