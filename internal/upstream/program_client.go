package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"immigration-advisor/internal/common/errors"
	httpclient "immigration-advisor/internal/common/http"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/models"
)

const programService = "program-service"

// HTTPProgramSource reads the program catalog from the program service.
type HTTPProgramSource struct {
	baseURL string
	client  *httpclient.Client
	logger  logger.Logger
}

func NewHTTPProgramSource(baseURL string, timeout time.Duration, log logger.Logger) *HTTPProgramSource {
	return &HTTPProgramSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"component": programService}),
	}
}

func (s *HTTPProgramSource) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.Program, error) {
	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.CountryID != "" {
		query.Set("countryId", filter.CountryID)
	}
	endpoint := s.baseURL + "/programs"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := s.get(ctx, endpoint, "")
	if err != nil {
		return nil, err
	}

	var data struct {
		Programs []*models.Program `json:"programs"`
	}
	if err := decodeEnvelope(programService, body, &data); err != nil {
		return nil, err
	}

	programs := normalizePrograms(data.Programs)
	s.logger.Debug("programs fetched", map[string]interface{}{
		"count":     len(programs),
		"category":  filter.Category,
		"countryId": filter.CountryID,
	})
	return programs, nil
}

func (s *HTTPProgramSource) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	endpoint := fmt.Sprintf("%s/programs/%s", s.baseURL, url.PathEscape(programID))
	body, err := s.get(ctx, endpoint, programID)
	if err != nil {
		return nil, err
	}

	var data struct {
		Program *models.Program `json:"program"`
	}
	if err := decodeEnvelope(programService, body, &data); err != nil {
		return nil, err
	}
	if data.Program == nil || data.Program.ID == "" {
		return nil, errors.NewProgramNotFoundError(programID)
	}
	return data.Program, nil
}

func (s *HTTPProgramSource) get(ctx context.Context, endpoint, programID string) ([]byte, error) {
	resp, err := s.client.DoJSON(ctx, http.MethodGet, endpoint, nil, authHeaders(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewRequestCancelledError(ctx.Err())
		}
		return nil, errors.NewUpstreamUnavailableError(programService, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && programID != "":
		return nil, errors.NewProgramNotFoundError(programID)
	case !resp.OK():
		return nil, errors.NewUpstreamUnavailableError(programService, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.Body, nil
}
