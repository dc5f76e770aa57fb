package event_bus

import "github.com/google/uuid"

const (
	ProgramChangedEvent EventType = "pdfcp.program.changed"
	LineChangedEvent    EventType = "pdfcp.line.changed"
)

type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
	OperationDeleted Operation = "deleted"
)

type ProgramChanged struct {
	ProgramId uuid.UUID
	Operation Operation
}

// LineChanged is published after a planned or programmed line was written to the relational store.
type LineChanged struct {
	ProgramId uuid.UUID
	LineId    uuid.UUID
	State     string
	Operation Operation
	UserId    string
}
