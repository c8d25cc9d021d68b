package upstream

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

var programRowColumns = []string{
	"id", "name", "category", "country_id", "country_name", "description",
	"historical_success_rate", "processing_time_months", "criteria", "costs", "steps",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresProgramSource_ListPrograms(t *testing.T) {
	db, mock := setupMockDB(t)
	src := NewPostgresProgramSource(db, logger.NewTestLogger(t))

	rows := sqlmock.NewRows(programRowColumns).
		AddRow("p1", "Express Entry", "work", "ca", "Canada", "Points based",
			0.62, 8.0,
			[]byte(`[{"kind":"workExperience","name":"Experience","minValue":1,"isRequired":true}]`),
			[]byte(`[{"name":"Processing fee","amount":850,"currency":"CAD"}]`),
			[]byte(`[{"order":1,"name":"Create profile"}]`)).
		AddRow("p2", "Study Permit", "work", "ca", nil, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta(listProgramsQuery)).
		WithArgs("work", "ca").
		WillReturnRows(rows)

	programs, err := src.ListPrograms(context.Background(), models.ProgramFilter{Category: "work", CountryID: "ca"})

	require.NoError(t, err)
	require.Len(t, programs, 2)

	p := programs[0]
	assert.Equal(t, "Canada", p.CountryName)
	require.NotNil(t, p.HistoricalSuccessRate)
	assert.Equal(t, 0.62, *p.HistoricalSuccessRate)
	require.Len(t, p.EligibilityCriteria, 1)
	assert.Equal(t, models.CriterionWorkExperience, p.EligibilityCriteria[0].Kind)
	assert.Equal(t, 850.0, p.Costs[0].Amount)
	assert.Equal(t, "Create profile", p.Steps[0].Name)

	assert.Nil(t, programs[1].HistoricalSuccessRate)
	assert.Empty(t, programs[1].EligibilityCriteria)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProgramSource_ListProgramsQueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	src := NewPostgresProgramSource(db, logger.NewTestLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta(listProgramsQuery)).
		WithArgs("", "").
		WillReturnError(sql.ErrConnDone)

	_, err := src.ListPrograms(context.Background(), models.ProgramFilter{})

	assert.True(t, errors.HasCode(err, errors.ErrCodeQueryExecution))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProgramSource_MalformedCriteria(t *testing.T) {
	db, mock := setupMockDB(t)
	src := NewPostgresProgramSource(db, logger.NewTestLogger(t))

	rows := sqlmock.NewRows(programRowColumns).
		AddRow("p1", "Express Entry", "work", "ca", "Canada", "", nil, nil, []byte(`{not json`), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(listProgramsQuery)).WithArgs("", "").WillReturnRows(rows)

	_, err := src.ListPrograms(context.Background(), models.ProgramFilter{})

	assert.True(t, errors.HasCode(err, errors.ErrCodeQueryExecution))
}

func TestPostgresProgramSource_GetProgram(t *testing.T) {
	db, mock := setupMockDB(t)
	src := NewPostgresProgramSource(db, logger.NewTestLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta(getProgramQuery)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(programRowColumns).
			AddRow("p1", "Express Entry", "work", "ca", "Canada", "", 0.5, nil, []byte(`[]`), nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(getProgramQuery)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(programRowColumns))

	p, err := src.GetProgram(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Express Entry", p.Name)

	_, err = src.GetProgram(context.Background(), "missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeProgramNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
