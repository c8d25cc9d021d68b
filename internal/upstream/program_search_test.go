package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

func newSearchSource(t *testing.T, handler http.HandlerFunc) *SearchProgramSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewSearchProgramSource(es, "", logger.NewTestLogger(t))
}

func TestBuildProgramQuery(t *testing.T) {
	all := buildProgramQuery(models.ProgramFilter{})
	assert.Contains(t, all["query"], "match_all")

	filtered := buildProgramQuery(models.ProgramFilter{Category: "work", CountryID: "ca"})
	raw, err := json.Marshal(filtered)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"query": {"bool": {"filter": [
			{"term": {"category": "work"}},
			{"term": {"countryId": "ca"}}
		]}},
		"sort": [{"_doc": "asc"}]
	}`, string(raw))
}

func TestSearchProgramSource_ListPrograms(t *testing.T) {
	var gotPath, gotBody string
	src := newSearchSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`{
			"hits": {"hits": [
				{"_id": "p1", "_source": {"name": "Express Entry", "countryId": "ca", "category": "work"}},
				{"_id": "p2", "_source": {"id": "p2", "name": "Start-up Visa", "countryId": "ca", "category": "business"}},
				{"_id": "p3", "_source": "not an object"}
			]}
		}`))
	})

	programs, err := src.ListPrograms(context.Background(), models.ProgramFilter{CountryID: "ca"})

	require.NoError(t, err)
	assert.Equal(t, "/programs/_search", gotPath)
	assert.True(t, strings.Contains(gotBody, `"countryId":"ca"`))
	require.Len(t, programs, 2)
	assert.Equal(t, "p1", programs[0].ID)
	assert.Equal(t, "Start-up Visa", programs[1].Name)
}

func TestSearchProgramSource_ListProgramsError(t *testing.T) {
	src := newSearchSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "shard failure"}`))
	})

	_, err := src.ListPrograms(context.Background(), models.ProgramFilter{})

	assert.True(t, errors.HasCode(err, errors.ErrCodeSearchQuery))
}

func TestSearchProgramSource_GetProgram(t *testing.T) {
	src := newSearchSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/programs/_doc/p1":
			_, _ = w.Write([]byte(`{"_id": "p1", "found": true, "_source": {"name": "Express Entry"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"_id": "x", "found": false}`))
		}
	})

	p, err := src.GetProgram(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Express Entry", p.Name)

	_, err = src.GetProgram(context.Background(), "missing")
	assert.True(t, errors.HasCode(err, errors.ErrCodeProgramNotFound))
}
