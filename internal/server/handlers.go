package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"immigration-advisor/internal/advisor"
	"immigration-advisor/internal/common/errors"
	"immigration-advisor/internal/common/validation"
	"immigration-advisor/internal/models"
)

const readinessTimeout = 2 * time.Second

var simulateSchema = validation.MustCompile("simulate-request", `{
  "type": "object",
  "required": ["profileChanges"],
  "additionalProperties": false,
  "properties": {
    "profileChanges": {"type": "object"},
    "programIdToEvaluate": {"type": "string"}
  }
}`)

type recommendQuery struct {
	Category string `form:"category" binding:"omitempty,max=64"`
	Country  string `form:"country" binding:"omitempty,max=64"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type programURI struct {
	ProgramID string `uri:"programId" binding:"required,programid"`
}

type simulateBody struct {
	ProfileChanges      models.ScenarioChange `json:"profileChanges" binding:"required"`
	ProgramIDToEvaluate string                `json:"programIdToEvaluate" binding:"omitempty,programid"`
}

func (s *Server) handleHealth(c *gin.Context) {
	respondOK(c, gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleReady probes every dependency concurrently.
func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(s.checks))
		failed  bool
	)
	for name, check := range s.checks {
		name, check := name, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			if status != "ok" {
				failed = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if failed {
		c.JSON(http.StatusServiceUnavailable, envelope{
			Status: "error",
			Data:   gin.H{"checks": results},
			Error:  &apiError{Code: string(errors.ErrCodeUpstreamUnavailable), Message: "Dependencies not ready"},
		})
		return
	}
	respondOK(c, gin.H{"status": "ready", "checks": results})
}

func (s *Server) handleRecommend(c *gin.Context) {
	var q recommendQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	result, err := s.advisor.Recommend(c.Request.Context(), advisor.RecommendRequest{
		UserID: c.GetString(userIDKey),
		Filter: models.ProgramFilter{Category: q.Category, CountryID: q.Country},
		Limit:  q.Limit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) handleDestinations(c *gin.Context) {
	suggestions, err := s.advisor.SuggestDestinations(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, gin.H{"destinations": suggestions})
}

func (s *Server) handleProbability(c *gin.Context) {
	programID, ok := s.bindProgramID(c)
	if !ok {
		return
	}
	result, err := s.advisor.Probability(c.Request.Context(), c.GetString(userIDKey), programID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) handleGaps(c *gin.Context) {
	programID, ok := s.bindProgramID(c)
	if !ok {
		return
	}
	report, err := s.advisor.Gaps(c.Request.Context(), c.GetString(userIDKey), programID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, report)
}

func (s *Server) handleSimulate(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.respondError(c, errors.NewInvalidInputError("unable to read request body"))
		return
	}
	if err := simulateSchema.ValidateBytes(raw); err != nil {
		s.respondError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	var body simulateBody
	if err := json.Unmarshal(raw, &body); err != nil {
		s.respondError(c, errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := binding.Validator.ValidateStruct(&body); err != nil {
		if body.ProgramIDToEvaluate != "" && !advisor.IsValidProgramID(body.ProgramIDToEvaluate) {
			s.respondError(c, errors.NewInvalidProgramIDError(body.ProgramIDToEvaluate))
			return
		}
		s.respondError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	result, err := s.advisor.Simulate(c.Request.Context(), advisor.SimulateRequest{
		UserID:    c.GetString(userIDKey),
		Changes:   body.ProfileChanges,
		ProgramID: body.ProgramIDToEvaluate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) bindProgramID(c *gin.Context) (string, bool) {
	var uri programURI
	if err := c.ShouldBindUri(&uri); err != nil {
		s.respondError(c, errors.NewInvalidProgramIDError(c.Param("programId")))
		return "", false
	}
	return uri.ProgramID, true
}
