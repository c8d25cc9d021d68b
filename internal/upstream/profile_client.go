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

const profileService = "profile-service"

// HTTPProfileSource reads applicant profiles from the profile service.
type HTTPProfileSource struct {
	baseURL string
	client  *httpclient.Client
	logger  logger.Logger
}

func NewHTTPProfileSource(baseURL string, timeout time.Duration, log logger.Logger) *HTTPProfileSource {
	return &HTTPProfileSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"component": profileService}),
	}
}

func (s *HTTPProfileSource) GetProfile(ctx context.Context, userID string) (*models.ApplicantProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.NewMissingProfileRefError()
	}

	endpoint := fmt.Sprintf("%s/profile/%s", s.baseURL, url.PathEscape(userID))
	resp, err := s.client.DoJSON(ctx, http.MethodGet, endpoint, nil, authHeaders(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewRequestCancelledError(ctx.Err())
		}
		return nil, errors.NewUpstreamUnavailableError(profileService, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewProfileNotFoundError(userID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.NewUnauthenticatedError("profile service rejected the caller's token")
	case !resp.OK():
		return nil, errors.NewUpstreamUnavailableError(profileService, fmt.Errorf("status %d", resp.StatusCode))
	}

	var data struct {
		Profile *models.ApplicantProfile `json:"profile"`
	}
	if err := decodeEnvelope(profileService, resp.Body, &data); err != nil {
		return nil, err
	}
	if data.Profile == nil {
		return nil, errors.NewUpstreamMalformedError(profileService, "missing profile")
	}
	if data.Profile.UserID == "" {
		data.Profile.UserID = userID
	}

	s.logger.Debug("profile fetched", map[string]interface{}{"userId": userID})
	return data.Profile, nil
}
