package upstream

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const programColumns = `id, name, category, country_id, country_name, description,
	historical_success_rate, processing_time_months, criteria, costs, steps`

const (
	listProgramsQuery = `SELECT ` + programColumns + `
	FROM programs
	WHERE ($1 = '' OR category = $1) AND ($2 = '' OR country_id = $2)
	ORDER BY name, id`

	getProgramQuery = `SELECT ` + programColumns + `
	FROM programs
	WHERE id = $1`
)

// PostgresProgramSource reads programs from the read-only catalog table.
// Criteria, costs and steps are JSONB columns.
type PostgresProgramSource struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresProgramSource(db *sql.DB, log logger.Logger) *PostgresProgramSource {
	return &PostgresProgramSource{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "program-catalog"}),
	}
}

func (s *PostgresProgramSource) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.Program, error) {
	rows, err := s.db.QueryContext(ctx, listProgramsQuery, filter.Category, filter.CountryID)
	if err != nil {
		return nil, s.queryError(ctx, "list_programs", err)
	}
	defer rows.Close()

	programs := make([]*models.Program, 0)
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionError("list_programs", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryError(ctx, "list_programs", err)
	}
	return programs, nil
}

func (s *PostgresProgramSource) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	p, err := scanProgram(s.db.QueryRowContext(ctx, getProgramQuery, programID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewProgramNotFoundError(programID)
	}
	if err != nil {
		return nil, s.queryError(ctx, "get_program", err)
	}
	return p, nil
}

func (s *PostgresProgramSource) queryError(ctx context.Context, query string, err error) error {
	if ctx.Err() != nil {
		return errors.NewRequestCancelledError(ctx.Err())
	}
	s.logger.Error("catalog query failed", map[string]interface{}{"query": query, "error": err.Error()})
	return errors.NewQueryExecutionError(query, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgram(row rowScanner) (*models.Program, error) {
	var (
		p                        models.Program
		countryName, description sql.NullString
		successRate, processing  sql.NullFloat64
		criteria, costs, steps   []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.CountryID, &countryName, &description,
		&successRate, &processing, &criteria, &costs, &steps); err != nil {
		return nil, err
	}

	p.CountryName = countryName.String
	p.Description = description.String
	if successRate.Valid {
		v := successRate.Float64
		p.HistoricalSuccessRate = &v
	}
	if processing.Valid {
		v := processing.Float64
		p.ProcessingTimeMonths = &v
	}
	if err := decodeJSONB(criteria, &p.EligibilityCriteria); err != nil {
		return nil, fmt.Errorf("program %s criteria: %w", p.ID, err)
	}
	if err := decodeJSONB(costs, &p.Costs); err != nil {
		return nil, fmt.Errorf("program %s costs: %w", p.ID, err)
	}
	if err := decodeJSONB(steps, &p.Steps); err != nil {
		return nil, fmt.Errorf("program %s steps: %w", p.ID, err)
	}
	return &p, nil
}

func decodeJSONB(raw []byte, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
