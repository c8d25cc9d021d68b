package database

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immigration-advisor/internal/common/config"
)

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	client := &PostgresClient{DB: db}

	probe := regexp.QuoteMeta(catalogProbe)

	mock.ExpectPing()
	mock.ExpectQuery(probe).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	require.NoError(t, client.Ping(context.Background()))

	// empty catalog
	mock.ExpectPing()
	mock.ExpectQuery(probe).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	require.NoError(t, client.Ping(context.Background()))

	mock.ExpectPing()
	mock.ExpectQuery(probe).WillReturnError(errors.New(`relation "programs" does not exist`))
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program catalog unreadable")

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres ping failed")

	mock.ExpectClose()
	require.NoError(t, client.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestElasticsearchClient_Ping(t *testing.T) {
	status := http.StatusOK
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(status)
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	assert.Equal(t, "programs", client.ProgramIndex)

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "/programs", gotPath)

	status = http.StatusNotFound
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `program index "programs" does not exist`)

	status = http.StatusBadRequest
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
