package program

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anef/pdfcp/internal/rest"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/anef/pdfcp/pkg/user"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type ProgramDTO struct {
	Id         string         `json:"id"`
	Code       string         `json:"code" validate:"required,max=64"`
	Title      string         `json:"title" validate:"required"`
	Region     string         `json:"region,omitempty"`
	Province   string         `json:"province,omitempty"`
	Commune    string         `json:"commune,omitempty"`
	YearStart  int            `json:"yearStart,omitempty" validate:"omitempty,gte=1900,lte=2200"`
	YearEnd    int            `json:"yearEnd,omitempty" validate:"omitempty,gte=1900,lte=2200"`
	CreatedAt  *time.Time     `json:"createdAt,omitempty"`
	Components []ComponentDTO `json:"components,omitempty" validate:"dive"`
}

type ComponentDTO struct {
	Id         string `json:"id"`
	ProgramId  string `json:"programId"`
	ActionType string `json:"actionType" validate:"required"`
	Label      string `json:"label,omitempty"`
	Zone       string `json:"zone,omitempty"`
	Year       int    `json:"year,omitempty" validate:"omitempty,gte=1900,lte=2200"`
	Budget     Amount `json:"budget"`
	Quantity   Amount `json:"quantity"`
	Unit       string `json:"unit,omitempty"`
}

// Amount is a component figure read from a JSON number or from text such as "30.880.000"
// or "1 500,50 DH".
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	if len(data) == 0 || data[0] != '"' {
		return a.Decimal.UnmarshalJSON(data)
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	if strings.TrimSpace(text) != "" && !strings.ContainsAny(text, "0123456789") {
		return fmt.Errorf("invalid amount %q", text)
	}
	a.Decimal = comparative.ParseAmount(text)
	return nil
}

type LineDTO struct {
	Id            string          `json:"id"`
	ProgramId     string          `json:"programId"`
	ComponentId   *string         `json:"componentId,omitempty" validate:"omitempty,uuid"`
	PlannedLineId *string         `json:"plannedLineId,omitempty" validate:"omitempty,uuid"`
	State         string          `json:"state" validate:"required,oneof=CONCERTE CP"`
	ActionType    string          `json:"actionType" validate:"required"`
	Zone          string          `json:"zone" validate:"required"`
	Year          int             `json:"year" validate:"required,gte=1900,lte=2200"`
	Quantity      decimal.Decimal `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"`
	Unit          string          `json:"unit,omitempty"`
	CpReference   string          `json:"cpReference,omitempty"`
	UpdatedBy     string          `json:"updatedBy,omitempty"`
	UpdatedAt     *time.Time      `json:"updatedAt,omitempty"`
}

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewProgramHandler(service Service) *Handler {
	return &Handler{service: service, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// ListPrograms godoc
// @Summary List PDFCP programmes
// @Tags Program
// @Produce json
// @Success 200 {array} ProgramDTO
// @Router /api/pdfcp/programs [get]
// @Security XUserId
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	log.Debug("Listing programmes")
	programs, err := h.service.ListPrograms(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]ProgramDTO, 0, len(programs))
	for _, p := range programs {
		dtos = append(dtos, ProgramToDTO(p, nil))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProgram godoc
// @Summary Create a PDFCP programme with its components
// @Tags Program
// @Accept json
// @Produce json
// @Param program body ProgramDTO true "Programme"
// @Success 201 {object} ProgramDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 403 {object} rest.ErrorResponse "Not allowed"
// @Router /api/pdfcp/programs [post]
// @Security XUserId
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating programme")
	var dto ProgramDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid request body format", Details: err.Error()})
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid programme", Details: err.Error()})
		return
	}
	program, components, err := DTOToProgram(dto)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid programme", Details: err.Error()})
		return
	}

	created, err := h.service.CreateProgram(r.Context(), program, components)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ProgramToDTO(created, components))
}

// GetProgram godoc
// @Summary Get a PDFCP programme
// @Tags Program
// @Produce json
// @Param programId path string true "Programme ID"
// @Success 200 {object} ProgramDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid programme id"
// @Failure 404 {object} rest.ErrorResponse "Programme not found"
// @Router /api/pdfcp/programs/{programId} [get]
// @Security XUserId
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	programId, ok := pathId(w, r, "programId")
	if !ok {
		return
	}
	program, err := h.service.GetProgram(r.Context(), programId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProgramToDTO(program, nil))
}

// ListComponents godoc
// @Summary List the components of a programme
// @Tags Program
// @Produce json
// @Param programId path string true "Programme ID"
// @Success 200 {array} ComponentDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid programme id"
// @Router /api/pdfcp/programs/{programId}/components [get]
// @Security XUserId
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	programId, ok := pathId(w, r, "programId")
	if !ok {
		return
	}
	components, err := h.service.ListComponents(r.Context(), programId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]ComponentDTO, 0, len(components))
	for _, c := range components {
		dtos = append(dtos, ComponentToDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListLines godoc
// @Summary List planned and programmed lines
// @Tags Line
// @Produce json
// @Param programId path string true "Programme ID"
// @Param state query string false "CONCERTE or CP, repeatable"
// @Param year query int false "Year, repeatable"
// @Param zone query string false "Zone, repeatable"
// @Success 200 {array} LineDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/pdfcp/programs/{programId}/lines [get]
// @Security XUserId
func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	programId, ok := pathId(w, r, "programId")
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := LineFilter{Zones: query["zone"]}
	for _, s := range query["state"] {
		filter.States = append(filter.States, State(s))
	}
	for _, y := range query["year"] {
		year, err := strconv.Atoi(y)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid year", Details: y})
			return
		}
		filter.Years = append(filter.Years, year)
	}

	lines, err := h.service.ListLines(r.Context(), programId, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]LineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, LineToDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLine godoc
// @Summary Create a planned or programmed line
// @Tags Line
// @Accept json
// @Produce json
// @Param programId path string true "Programme ID"
// @Param line body LineDTO true "Line"
// @Success 201 {object} LineDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 403 {object} rest.ErrorResponse "Not allowed"
// @Failure 404 {object} rest.ErrorResponse "Programme not found"
// @Router /api/pdfcp/programs/{programId}/lines [post]
// @Security XUserId
func (h *Handler) CreateLine(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating line")
	programId, ok := pathId(w, r, "programId")
	if !ok {
		return
	}
	line, ok := h.decodeLine(w, r, programId)
	if !ok {
		return
	}
	line.Id = uuid.Nil

	created, err := h.service.CreateLine(r.Context(), line)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, LineToDTO(created))
}

// UpdateLine godoc
// @Summary Update a planned or programmed line
// @Tags Line
// @Accept json
// @Produce json
// @Param programId path string true "Programme ID"
// @Param lineId path string true "Line ID"
// @Param line body LineDTO true "Line"
// @Success 200 {object} LineDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 403 {object} rest.ErrorResponse "Not allowed"
// @Failure 404 {object} rest.ErrorResponse "Line not found"
// @Router /api/pdfcp/programs/{programId}/lines/{lineId} [put]
// @Security XUserId
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating line")
	programId, ok := pathId(w, r, "programId")
	if !ok {
		return
	}
	lineId, ok := pathId(w, r, "lineId")
	if !ok {
		return
	}
	line, ok := h.decodeLine(w, r, programId)
	if !ok {
		return
	}
	if line.Id != uuid.Nil && line.Id != lineId {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid line id in request body"})
		return
	}
	line.Id = lineId

	updated, err := h.service.UpdateLine(r.Context(), line)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LineToDTO(updated))
}

// DeleteLine godoc
// @Summary Delete a planned or programmed line
// @Tags Line
// @Param programId path string true "Programme ID"
// @Param lineId path string true "Line ID"
// @Success 204 "No Content"
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 403 {object} rest.ErrorResponse "Not allowed"
// @Failure 404 {object} rest.ErrorResponse "Line not found"
// @Router /api/pdfcp/programs/{programId}/lines/{lineId} [delete]
// @Security XUserId
func (h *Handler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	log.Debug("Deleting line")
	programId, ok := pathId(w, r, "programId")
	if !ok {
		return
	}
	lineId, ok := pathId(w, r, "lineId")
	if !ok {
		return
	}
	deleted, err := h.service.DeleteLine(r.Context(), programId, lineId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !deleted {
		rest.WriteError(w, http.StatusNotFound, rest.ErrorResponse{Error: ErrLineNotFound.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeLine(w http.ResponseWriter, r *http.Request, programId uuid.UUID) (Line, bool) {
	var dto LineDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid request body format", Details: err.Error()})
		return Line{}, false
	}
	if err := h.validate.Struct(dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid line", Details: err.Error()})
		return Line{}, false
	}
	line, err := DTOToLine(programId, dto)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid line", Details: err.Error()})
		return Line{}, false
	}
	return line, true
}

// pathId parses a UUID path variable and answers 400 when it is malformed.
func pathId(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: "Invalid " + name, Details: raw})
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNoUser), errors.Is(err, ErrForbidden):
		rest.WriteError(w, http.StatusForbidden, rest.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrProgramNotFound), errors.Is(err, ErrLineNotFound):
		rest.WriteError(w, http.StatusNotFound, rest.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidLine),
		errors.Is(err, ErrUnknownComponent), errors.Is(err, ErrUnknownPlannedLine):
		rest.WriteError(w, http.StatusBadRequest, rest.ErrorResponse{Error: err.Error()})
	default:
		log.Errorf("programme request failed: %v", err)
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

func ProgramToDTO(p Program, components []Component) ProgramDTO {
	dto := ProgramDTO{
		Id:        p.Id.String(),
		Code:      p.Code,
		Title:     p.Title,
		Region:    p.Region,
		Province:  p.Province,
		Commune:   p.Commune,
		YearStart: p.YearStart,
		YearEnd:   p.YearEnd,
	}
	if !p.CreatedAt.IsZero() {
		createdAt := p.CreatedAt
		dto.CreatedAt = &createdAt
	}
	for _, c := range components {
		dto.Components = append(dto.Components, ComponentToDTO(c))
	}
	return dto
}

func DTOToProgram(dto ProgramDTO) (Program, []Component, error) {
	program := Program{
		Code:      dto.Code,
		Title:     dto.Title,
		Region:    dto.Region,
		Province:  dto.Province,
		Commune:   dto.Commune,
		YearStart: dto.YearStart,
		YearEnd:   dto.YearEnd,
	}
	var err error
	if program.Id, err = optionalId(dto.Id); err != nil {
		return Program{}, nil, err
	}
	components := make([]Component, 0, len(dto.Components))
	for _, c := range dto.Components {
		id, err := optionalId(c.Id)
		if err != nil {
			return Program{}, nil, err
		}
		components = append(components, Component{
			Id:         id,
			ProgramId:  program.Id,
			ActionType: c.ActionType,
			Label:      c.Label,
			Zone:       c.Zone,
			Year:       c.Year,
			Budget:     c.Budget.Decimal,
			Quantity:   c.Quantity.Decimal,
			Unit:       c.Unit,
		})
	}
	return program, components, nil
}

func ComponentToDTO(c Component) ComponentDTO {
	return ComponentDTO{
		Id:         c.Id.String(),
		ProgramId:  c.ProgramId.String(),
		ActionType: c.ActionType,
		Label:      c.Label,
		Zone:       c.Zone,
		Year:       c.Year,
		Budget:     NewAmount(c.Budget),
		Quantity:   NewAmount(c.Quantity),
		Unit:       c.Unit,
	}
}

func LineToDTO(l Line) LineDTO {
	dto := LineDTO{
		Id:          l.Id.String(),
		ProgramId:   l.ProgramId.String(),
		State:       string(l.State),
		ActionType:  l.ActionType,
		Zone:        l.Zone,
		Year:        l.Year,
		Quantity:    l.Quantity,
		Amount:      l.Amount,
		Unit:        l.Unit,
		CpReference: l.CpReference,
		UpdatedBy:   l.UpdatedBy,
	}
	if l.ComponentId != nil {
		id := l.ComponentId.String()
		dto.ComponentId = &id
	}
	if l.PlannedLineId != nil {
		id := l.PlannedLineId.String()
		dto.PlannedLineId = &id
	}
	if !l.UpdatedAt.IsZero() {
		updatedAt := l.UpdatedAt
		dto.UpdatedAt = &updatedAt
	}
	return dto
}

func DTOToLine(programId uuid.UUID, dto LineDTO) (Line, error) {
	line := Line{
		ProgramId:   programId,
		State:       State(dto.State),
		ActionType:  dto.ActionType,
		Zone:        dto.Zone,
		Year:        dto.Year,
		Quantity:    dto.Quantity,
		Amount:      dto.Amount,
		Unit:        dto.Unit,
		CpReference: dto.CpReference,
	}
	var err error
	if line.Id, err = optionalId(dto.Id); err != nil {
		return Line{}, err
	}
	if dto.ComponentId != nil {
		if line.ComponentId, err = parseNullableId(*dto.ComponentId); err != nil {
			return Line{}, err
		}
	}
	if dto.PlannedLineId != nil {
		if line.PlannedLineId, err = parseNullableId(*dto.PlannedLineId); err != nil {
			return Line{}, err
		}
	}
	return line, nil
}

func optionalId(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}
