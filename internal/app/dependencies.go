package app

import (
	"github.com/anef/pdfcp/internal/config"
	"github.com/anef/pdfcp/internal/event_bus"
	"github.com/anef/pdfcp/internal/utils"
	"github.com/anef/pdfcp/pkg/dashboard"
	"github.com/anef/pdfcp/pkg/demo"
	"github.com/anef/pdfcp/pkg/execution"
	"github.com/anef/pdfcp/pkg/program"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	ProgramRepo    program.Repository
	ProgramService *program.ServiceImpl
	ProgramHandler *program.Handler

	HostedClient execution.Client

	DashboardService *dashboard.ServiceImpl
	DashboardHandler *dashboard.Handler

	DemoGate    demo.Gate
	DemoHandler *demo.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}

	deps.ProgramRepo = program.NewRepository(db)
	deps.ProgramService = program.NewProgramService(deps.ProgramRepo, deps.EventBus)
	deps.ProgramHandler = program.NewProgramHandler(deps.ProgramService)

	deps.HostedClient = execution.NewClient(cfg.Hosted)

	deps.DashboardService = dashboard.NewService(deps.ProgramService, deps.HostedClient, deps.EventBus, deps.Clock, cfg.Dashboard)
	deps.DashboardHandler = dashboard.NewHandler(deps.DashboardService, deps.Clock)

	deps.DemoGate = demo.NewGate(cfg.Demo.DisableAdminDg)
	deps.DemoHandler = demo.NewHandler(deps.DemoGate)

	return deps
}
