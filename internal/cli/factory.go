package cli

import (
	"github.com/anef/pdfcp/internal/config"
	"github.com/anef/pdfcp/internal/database"
	"github.com/anef/pdfcp/internal/event_bus"
	"github.com/anef/pdfcp/internal/utils"
	"github.com/anef/pdfcp/pkg/dashboard"
	"github.com/anef/pdfcp/pkg/execution"
	"github.com/anef/pdfcp/pkg/program"
)

// DatabaseServiceFactory reads programmes from the relational store and executions from the hosted one.
func DatabaseServiceFactory(cfg config.Application) (dashboard.Service, func(), error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	bus := event_bus.NewEventBus()
	programs := program.NewProgramService(program.NewRepository(db), bus)
	service := dashboard.NewService(programs, execution.NewClient(cfg.Hosted), bus, &utils.SystemClock{}, cfg.Dashboard)
	return service, db.Close, nil
}
