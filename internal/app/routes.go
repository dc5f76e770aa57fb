package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Programmes
	r.HandleFunc("/api/pdfcp/programs", deps.ProgramHandler.ListPrograms).Methods("GET")
	r.HandleFunc("/api/pdfcp/programs", deps.ProgramHandler.CreateProgram).Methods("POST")
	r.HandleFunc("/api/pdfcp/programs/{programId}", deps.ProgramHandler.GetProgram).Methods("GET")
	r.HandleFunc("/api/pdfcp/programs/{programId}/components", deps.ProgramHandler.ListComponents).Methods("GET")

	// Planned and programmed lines
	r.HandleFunc("/api/pdfcp/programs/{programId}/lines", deps.ProgramHandler.ListLines).Methods("GET")
	r.HandleFunc("/api/pdfcp/programs/{programId}/lines", deps.ProgramHandler.CreateLine).Methods("POST")
	r.HandleFunc("/api/pdfcp/programs/{programId}/lines/{lineId}", deps.ProgramHandler.UpdateLine).Methods("PUT")
	r.HandleFunc("/api/pdfcp/programs/{programId}/lines/{lineId}", deps.ProgramHandler.DeleteLine).Methods("DELETE")

	// Dashboard
	r.HandleFunc("/api/pdfcp/programs/{programId}/comparative", deps.DashboardHandler.Comparative).Methods("GET")
	r.HandleFunc("/api/pdfcp/programs/{programId}/progress", deps.DashboardHandler.Progress).Methods("GET")

	// Demo accounts
	r.HandleFunc("/api/demo/status", deps.DemoHandler.Status).Methods("GET")
}
