package demo

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type StatusDTO struct {
	AdminDgDisabled bool     `json:"adminDgDisabled"`
	Accounts        []string `json:"accounts"`
}

type Handler struct {
	gate Gate
}

func NewHandler(gate Gate) *Handler {
	return &Handler{gate: gate}
}

// Status godoc
// @Summary Demo accounts availability
// @Description Tells the front-end whether the demo ADMIN and DG accounts can be offered
// @Tags Demo
// @Produce json
// @Success 200 {object} StatusDTO
// @Router /api/demo/status [get]
func (handler *Handler) Status(w http.ResponseWriter, r *http.Request) {
	log.Debug("Getting demo accounts status")
	w.Header().Set("Content-Type", "application/json")
	status := StatusDTO{AdminDgDisabled: handler.gate.IsDemoAdminDgDisabled(), Accounts: []string{}}
	if !status.AdminDgDisabled {
		status.Accounts = []string{AdminEmail, DgEmail}
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
