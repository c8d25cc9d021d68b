package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"immigration-advisor/internal/common/errors"
	httpclient "immigration-advisor/internal/common/http"
	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/metrics"
	"immigration-advisor/internal/common/observability"
	"immigration-advisor/internal/common/validation"
	"immigration-advisor/internal/models"
)

const (
	SuccessProbabilityPath = "/predict/success_probability"
	MatchScorePath         = "/predict/match_score"
)

const factorListSchema = `{
  "type": "array",
  "items": {
    "anyOf": [
      {"type": "string"},
      {
        "type": "object",
        "required": ["factor"],
        "properties": {
          "factor": {"type": "string"},
          "impact": {"type": "string", "enum": ["low", "medium", "high"]}
        }
      }
    ]
  }
}`

func predictionSchema(field string) string {
	return `{
  "type": "object",
  "required": ["` + field + `"],
  "properties": {
    "status": {"type": "string", "enum": ["success"]},
    "` + field + `": {"type": "number", "minimum": 0, "maximum": 1},
    "explanation": {
      "type": "object",
      "properties": {
        "positive_factors": ` + factorListSchema + `,
        "negative_factors": ` + factorListSchema + `,
        "notes": {"type": "string"}
      }
    }
  }
}`
}

var (
	successSchema = validation.MustCompile("success_probability", predictionSchema("success_probability"))
	matchSchema   = validation.MustCompile("match_score", predictionSchema("match_score"))
)

type predictionRequest struct {
	UserProfile    *models.ApplicantProfile `json:"user_profile"`
	ProgramDetails *models.Program          `json:"program_details"`
}

type predictorFactor struct {
	Factor string          `json:"factor"`
	Impact models.Severity `json:"impact"`
}

// UnmarshalJSON accepts a bare string as a medium-impact factor.
func (f *predictorFactor) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		f.Factor, f.Impact = text, models.SeverityMedium
		return nil
	}
	type plain predictorFactor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = predictorFactor(p)
	if f.Impact == "" {
		f.Impact = models.SeverityMedium
	}
	return nil
}

type predictionResponse struct {
	SuccessProbability *float64 `json:"success_probability"`
	MatchScore         *float64 `json:"match_score"`
	Explanation        struct {
		PositiveFactors []predictorFactor `json:"positive_factors"`
		NegativeFactors []predictorFactor `json:"negative_factors"`
		Notes           string            `json:"notes"`
	} `json:"explanation"`
}

// PredictorClient calls the external prediction service. It implements both
// the success estimator and the match scorer; any failure is returned so the
// resilient wrappers can substitute their fallback.
type PredictorClient struct {
	baseURL string
	client  *httpclient.Client
	logger  logger.Logger
}

func NewPredictorClient(baseURL string, timeout time.Duration, log logger.Logger) *PredictorClient {
	return &PredictorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewClient(timeout),
		logger:  log.WithFields(map[string]interface{}{"component": "predictor"}),
	}
}

func (c *PredictorClient) Estimate(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.SuccessEstimate, error) {
	resp, err := c.predict(ctx, SuccessProbabilityPath, successSchema, profile, program)
	if err != nil {
		return models.SuccessEstimate{}, err
	}
	return models.SuccessEstimate{
		Probability:     int(math.Round(*resp.SuccessProbability * 100)),
		PositiveFactors: toFactors(resp.Explanation.PositiveFactors),
		NegativeFactors: toFactors(resp.Explanation.NegativeFactors),
		Notes:           resp.Explanation.Notes,
		Source:          models.SourceModel,
	}, nil
}

func (c *PredictorClient) Score(ctx context.Context, profile *models.ApplicantProfile, program *models.Program) (models.MatchEstimate, error) {
	resp, err := c.predict(ctx, MatchScorePath, matchSchema, profile, program)
	if err != nil {
		return models.MatchEstimate{}, err
	}
	return models.MatchEstimate{
		Score:           *resp.MatchScore,
		PositiveFactors: toFactors(resp.Explanation.PositiveFactors),
		NegativeFactors: toFactors(resp.Explanation.NegativeFactors),
		Source:          models.SourceModel,
	}, nil
}

func (c *PredictorClient) predict(ctx context.Context, path string, schema *validation.Schema, profile *models.ApplicantProfile, program *models.Program) (*predictionResponse, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPredictorCall,
		attribute.String("predictor.endpoint", path),
		attribute.String("advisor.program_id", program.ID))
	defer span.End()

	endpoint := c.baseURL + path
	resp, err := c.client.DoJSON(ctx, http.MethodPost, endpoint,
		predictionRequest{UserProfile: profile, ProgramDetails: program}, nil)
	if err != nil {
		metrics.PredictorCalls.WithLabelValues(path, "error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.NewPredictorUnavailableError(endpoint, err)
	}
	if !resp.OK() {
		metrics.PredictorCalls.WithLabelValues(path, "error").Inc()
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return nil, errors.NewPredictorUnavailableError(endpoint, fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := schema.ValidateBytes(resp.Body); err != nil {
		metrics.PredictorCalls.WithLabelValues(path, "malformed").Inc()
		span.SetStatus(codes.Error, "malformed response")
		c.logger.Debug("predictor response rejected", map[string]interface{}{"endpoint": path, "error": err.Error()})
		return nil, errors.NewPredictorMalformedError(endpoint, err.Error())
	}

	var parsed predictionResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		metrics.PredictorCalls.WithLabelValues(path, "malformed").Inc()
		return nil, errors.NewPredictorMalformedError(endpoint, err.Error())
	}

	metrics.PredictorCalls.WithLabelValues(path, "success").Inc()
	return &parsed, nil
}

func toFactors(in []predictorFactor) []models.Factor {
	out := make([]models.Factor, 0, len(in))
	for _, f := range in {
		if strings.TrimSpace(f.Factor) == "" {
			continue
		}
		out = append(out, models.Factor{Factor: f.Factor, Impact: f.Impact})
	}
	return out
}
