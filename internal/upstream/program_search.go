package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const (
	DefaultProgramIndex = "programs"
	maxSearchResults    = 500
)

// SearchProgramSource reads programs from an Elasticsearch index whose
// documents are Program JSON.
type SearchProgramSource struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewSearchProgramSource(es *elasticsearch.Client, index string, log logger.Logger) *SearchProgramSource {
	if index == "" {
		index = DefaultProgramIndex
	}
	return &SearchProgramSource{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "program-search", "index": index}),
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type getResponse struct {
	ID     string          `json:"_id"`
	Found  bool            `json:"found"`
	Source json.RawMessage `json:"_source"`
}

func buildProgramQuery(filter models.ProgramFilter) map[string]interface{} {
	filters := make([]interface{}, 0, 2)
	if filter.Category != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"category": filter.Category}})
	}
	if filter.CountryID != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"countryId": filter.CountryID}})
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filters) > 0 {
		query = map[string]interface{}{"bool": map[string]interface{}{"filter": filters}}
	}
	return map[string]interface{}{
		"query": query,
		"sort":  []interface{}{map[string]interface{}{"_doc": "asc"}},
	}
}

func (s *SearchProgramSource) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.Program, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildProgramQuery(filter)); err != nil {
		return nil, errors.NewInternalError(err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(&buf),
		s.es.Search.WithSize(maxSearchResults),
	)
	if err != nil {
		return nil, s.searchError(ctx, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, s.searchError(ctx, fmt.Errorf("search error: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryError(s.index, fmt.Errorf("failed to decode search response: %w", err))
	}

	programs := make([]*models.Program, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		p, err := decodeProgramDoc(hit.ID, hit.Source)
		if err != nil {
			s.logger.Warn("skipping malformed program document", map[string]interface{}{"id": hit.ID, "error": err.Error()})
			continue
		}
		programs = append(programs, p)
	}
	return programs, nil
}

func (s *SearchProgramSource) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	res, err := s.es.Get(s.index, programID, s.es.Get.WithContext(ctx))
	if err != nil {
		return nil, s.searchError(ctx, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NewProgramNotFoundError(programID)
	}
	if res.IsError() {
		return nil, s.searchError(ctx, fmt.Errorf("get error: %s", res.Status()))
	}

	var parsed getResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryError(s.index, fmt.Errorf("failed to decode document: %w", err))
	}
	if !parsed.Found {
		return nil, errors.NewProgramNotFoundError(programID)
	}

	p, err := decodeProgramDoc(parsed.ID, parsed.Source)
	if err != nil {
		return nil, errors.NewSearchQueryError(s.index, err)
	}
	return p, nil
}

func (s *SearchProgramSource) searchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.NewRequestCancelledError(ctx.Err())
	}
	s.logger.Error("program search failed", map[string]interface{}{"error": err.Error()})
	return errors.NewSearchQueryError(s.index, err)
}

// decodeProgramDoc falls back to the document id when the source omits it.
func decodeProgramDoc(id string, source json.RawMessage) (*models.Program, error) {
	var p models.Program
	if err := json.Unmarshal(source, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.ID == "" {
		return nil, fmt.Errorf("document has no id")
	}
	return &p, nil
}
