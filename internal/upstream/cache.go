package upstream

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/metrics"
	"immigration-advisor/internal/models"
)

const cachePrefix = "advisor:"

// cache is a JSON cache-aside helper. Redis failures never fail a request;
// they degrade to a direct upstream read.
type cache struct {
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func (c *cache) get(ctx context.Context, resource, key string, out interface{}) bool {
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
			metrics.CacheLookups.WithLabelValues(resource, "error").Inc()
			return false
		}
		metrics.CacheLookups.WithLabelValues(resource, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		metrics.CacheLookups.WithLabelValues(resource, "error").Inc()
		return false
	}
	metrics.CacheLookups.WithLabelValues(resource, "hit").Inc()
	return true
}

func (c *cache) set(ctx context.Context, key string, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// CachedProfileSource caches profiles by user id.
type CachedProfileSource struct {
	next  ProfileSource
	cache cache
}

func NewCachedProfileSource(next ProfileSource, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedProfileSource {
	return &CachedProfileSource{
		next:  next,
		cache: cache{redis: rdb, ttl: ttl, logger: log.WithFields(map[string]interface{}{"component": "profile-cache"})},
	}
}

func ProfileCacheKey(userID string) string {
	return cachePrefix + "profile:" + userID
}

func (s *CachedProfileSource) GetProfile(ctx context.Context, userID string) (*models.ApplicantProfile, error) {
	key := ProfileCacheKey(userID)
	var cached models.ApplicantProfile
	if s.cache.get(ctx, "profile", key, &cached) {
		return &cached, nil
	}

	profile, err := s.next.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, key, profile)
	return profile, nil
}

// CachedProgramSource caches program lists per filter and single programs
// per id.
type CachedProgramSource struct {
	next  ProgramSource
	cache cache
}

func NewCachedProgramSource(next ProgramSource, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedProgramSource {
	return &CachedProgramSource{
		next:  next,
		cache: cache{redis: rdb, ttl: ttl, logger: log.WithFields(map[string]interface{}{"component": "program-cache"})},
	}
}

func ProgramListCacheKey(filter models.ProgramFilter) string {
	return fmt.Sprintf("%sprograms:%s:%s", cachePrefix, filter.Category, filter.CountryID)
}

func ProgramCacheKey(programID string) string {
	return cachePrefix + "program:" + programID
}

func (s *CachedProgramSource) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.Program, error) {
	key := ProgramListCacheKey(filter)
	var cached []*models.Program
	if s.cache.get(ctx, "programs", key, &cached) {
		return cached, nil
	}

	programs, err := s.next.ListPrograms(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, key, programs)
	return programs, nil
}

func (s *CachedProgramSource) GetProgram(ctx context.Context, programID string) (*models.Program, error) {
	key := ProgramCacheKey(programID)
	var cached models.Program
	if s.cache.get(ctx, "program", key, &cached) {
		return &cached, nil
	}

	program, err := s.next.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	s.cache.set(ctx, key, program)
	return program, nil
}
