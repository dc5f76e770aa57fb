package program

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrProgramNotFound = errors.New("program not found")
var ErrLineNotFound = errors.New("line not found")

const (
	tablePrograms   = "pdfcp_program"
	tableComponents = "pdfcp_component"
	tableLines      = "pdfcp_action"
)

var lineColumns = []string{
	"id",
	"program_id",
	"COALESCE(component_id::text, '')",
	"COALESCE(planned_line_id::text, '')",
	"state",
	"action_type",
	"zone",
	"year",
	"quantity::text",
	"amount::text",
	"unit",
	"cp_reference",
	"updated_by",
	"updated_at",
}

type Repository interface {
	ListPrograms(ctx context.Context) ([]Program, error)
	GetProgram(ctx context.Context, programId uuid.UUID) (Program, error)
	CreateProgram(ctx context.Context, program Program, components []Component) (Program, error)
	ListComponents(ctx context.Context, programId uuid.UUID) ([]Component, error)
	ListLines(ctx context.Context, programId uuid.UUID, filter LineFilter) ([]Line, error)
	GetLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (Line, error)
	StoreLine(ctx context.Context, line Line) (Line, error)
	UpdateLine(ctx context.Context, line Line) (Line, error)
	DeleteLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// builder returns a statement builder using Postgres placeholders.
// UUIDs are passed to squirrel.Eq as strings, arrays would be expanded into IN lists.
func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *RepositoryImpl) ListPrograms(ctx context.Context) ([]Program, error) {
	query, args, err := builder().
		Select("id", "code", "title", "region", "province", "commune", "year_start", "year_end", "created_at").
		From(tablePrograms).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query programs: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	programs := make([]Program, 0)
	for rows.Next() {
		var p Program
		if err := rows.Scan(&p.Id, &p.Code, &p.Title, &p.Region, &p.Province, &p.Commune, &p.YearStart, &p.YearEnd, &p.CreatedAt); err != nil {
			err := fmt.Errorf("error scanning program: %w", err)
			log.Error(err)
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

func (r *RepositoryImpl) GetProgram(ctx context.Context, programId uuid.UUID) (Program, error) {
	query, args, err := builder().
		Select("id", "code", "title", "region", "province", "commune", "year_start", "year_end", "created_at").
		From(tablePrograms).
		Where(squirrel.Eq{"id": programId.String()}).
		ToSql()
	if err != nil {
		return Program{}, err
	}

	var p Program
	err = r.db.QueryRow(ctx, query, args...).
		Scan(&p.Id, &p.Code, &p.Title, &p.Region, &p.Province, &p.Commune, &p.YearStart, &p.YearEnd, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Program{}, ErrProgramNotFound
		}
		err := fmt.Errorf("could not get program %s: %w", programId, err)
		log.Error(err)
		return Program{}, err
	}
	return p, nil
}

// CreateProgram stores the programme together with its components in one transaction.
func (r *RepositoryImpl) CreateProgram(ctx context.Context, program Program, components []Component) (Program, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Program{}, err
	}
	defer tx.Rollback(ctx)

	query, args, err := builder().
		Insert(tablePrograms).
		Columns("id", "code", "title", "region", "province", "commune", "year_start", "year_end").
		Values(program.Id, program.Code, program.Title, program.Region, program.Province, program.Commune, program.YearStart, program.YearEnd).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return Program{}, err
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&program.CreatedAt); err != nil {
		err := fmt.Errorf("could not insert program: %w", err)
		log.Error(err)
		return Program{}, err
	}

	if len(components) > 0 {
		insert := builder().
			Insert(tableComponents).
			Columns("id", "program_id", "action_type", "label", "zone", "year", "budget", "quantity", "unit")
		for _, c := range components {
			insert = insert.Values(c.Id, program.Id, c.ActionType, c.Label, c.Zone, c.Year, c.Budget.String(), c.Quantity.String(), c.Unit)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return Program{}, err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			err := fmt.Errorf("could not insert components: %w", err)
			log.Error(err)
			return Program{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Program{}, err
	}
	return program, nil
}

func (r *RepositoryImpl) ListComponents(ctx context.Context, programId uuid.UUID) ([]Component, error) {
	query, args, err := builder().
		Select("id", "program_id", "action_type", "label", "zone", "year", "budget::text", "quantity::text", "unit").
		From(tableComponents).
		Where(squirrel.Eq{"program_id": programId.String()}).
		OrderBy("year", "zone", "action_type").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query components: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	components := make([]Component, 0)
	for rows.Next() {
		var c Component
		var budget, quantity string
		if err := rows.Scan(&c.Id, &c.ProgramId, &c.ActionType, &c.Label, &c.Zone, &c.Year, &budget, &quantity, &c.Unit); err != nil {
			err := fmt.Errorf("error scanning component: %w", err)
			log.Error(err)
			return nil, err
		}
		if c.Budget, err = decimal.NewFromString(budget); err != nil {
			return nil, fmt.Errorf("invalid budget for component %s: %w", c.Id, err)
		}
		if c.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invalid quantity for component %s: %w", c.Id, err)
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

func (r *RepositoryImpl) ListLines(ctx context.Context, programId uuid.UUID, filter LineFilter) ([]Line, error) {
	q := builder().
		Select(lineColumns...).
		From(tableLines).
		Where(squirrel.Eq{"program_id": programId.String()})
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, s := range filter.States {
			states = append(states, string(s))
		}
		q = q.Where(squirrel.Eq{"state": states})
	}
	if len(filter.Years) > 0 {
		q = q.Where(squirrel.Eq{"year": filter.Years})
	}
	if len(filter.Zones) > 0 {
		q = q.Where(squirrel.Eq{"zone": filter.Zones})
	}
	query, args, err := q.OrderBy("year", "zone", "id").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query lines: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			log.Error(err)
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *RepositoryImpl) GetLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (Line, error) {
	query, args, err := builder().
		Select(lineColumns...).
		From(tableLines).
		Where(squirrel.Eq{"program_id": programId.String(), "id": lineId.String()}).
		ToSql()
	if err != nil {
		return Line{}, err
	}

	line, err := scanLine(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, ErrLineNotFound
		}
		log.Error(err)
		return Line{}, err
	}
	return line, nil
}

func (r *RepositoryImpl) StoreLine(ctx context.Context, line Line) (Line, error) {
	query, args, err := builder().
		Insert(tableLines).
		Columns("id", "program_id", "component_id", "planned_line_id", "state", "action_type", "zone", "year",
			"quantity", "amount", "unit", "cp_reference", "updated_by").
		Values(line.Id, line.ProgramId, nullableId(line.ComponentId), nullableId(line.PlannedLineId), string(line.State),
			line.ActionType, line.Zone, line.Year, line.Quantity.String(), line.Amount.String(), line.Unit,
			line.CpReference, line.UpdatedBy).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return Line{}, err
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&line.UpdatedAt); err != nil {
		err := fmt.Errorf("could not insert line: %w", err)
		log.Error(err)
		return Line{}, err
	}
	return line, nil
}

func (r *RepositoryImpl) UpdateLine(ctx context.Context, line Line) (Line, error) {
	query, args, err := builder().
		Update(tableLines).
		SetMap(map[string]any{
			"component_id":    nullableId(line.ComponentId),
			"planned_line_id": nullableId(line.PlannedLineId),
			"state":           string(line.State),
			"action_type":     line.ActionType,
			"zone":            line.Zone,
			"year":            line.Year,
			"quantity":        line.Quantity.String(),
			"amount":          line.Amount.String(),
			"unit":            line.Unit,
			"cp_reference":    line.CpReference,
			"updated_by":      line.UpdatedBy,
			"updated_at":      squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"program_id": line.ProgramId.String(), "id": line.Id.String()}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return Line{}, err
	}

	var updatedAt time.Time
	if err := r.db.QueryRow(ctx, query, args...).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, ErrLineNotFound
		}
		err := fmt.Errorf("could not update line %s: %w", line.Id, err)
		log.Error(err)
		return Line{}, err
	}
	line.UpdatedAt = updatedAt
	return line, nil
}

func (r *RepositoryImpl) DeleteLine(ctx context.Context, programId uuid.UUID, lineId uuid.UUID) (bool, error) {
	query, args, err := builder().
		Delete(tableLines).
		Where(squirrel.Eq{"program_id": programId.String(), "id": lineId.String()}).
		ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not delete line %s: %w", lineId, err)
		log.Error(err)
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanLine(row pgx.Row) (Line, error) {
	var (
		line          Line
		componentId   string
		plannedLineId string
		state         string
		quantity      string
		amount        string
	)
	err := row.Scan(&line.Id, &line.ProgramId, &componentId, &plannedLineId, &state, &line.ActionType, &line.Zone,
		&line.Year, &quantity, &amount, &line.Unit, &line.CpReference, &line.UpdatedBy, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, err
		}
		return Line{}, fmt.Errorf("error scanning line: %w", err)
	}
	line.State = State(state)
	if line.ComponentId, err = parseNullableId(componentId); err != nil {
		return Line{}, err
	}
	if line.PlannedLineId, err = parseNullableId(plannedLineId); err != nil {
		return Line{}, err
	}
	if line.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return Line{}, fmt.Errorf("invalid quantity for line %s: %w", line.Id, err)
	}
	if line.Amount, err = decimal.NewFromString(amount); err != nil {
		return Line{}, fmt.Errorf("invalid amount for line %s: %w", line.Id, err)
	}
	return line, nil
}

func nullableId(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func parseNullableId(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
