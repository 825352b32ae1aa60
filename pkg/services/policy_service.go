package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/apperrors"
	"github.com/mnemo-labs/mnemo-engine/pkg/config"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

// policyCacheTTL bounds how stale a cached policy can be. Lifecycle
// runs read the policy once up front, so a short TTL is enough.
const policyCacheTTL = 30 * time.Second

// PolicyService reads and writes per-workspace lifecycle policies.
type PolicyService interface {
	// GetPolicy returns the stored policy, or the configured defaults
	// when none exists. It never fails the caller: store errors degrade
	// to defaults with a logged warning. Defaults are not persisted.
	GetPolicy(ctx context.Context, workspaceID uuid.UUID) *models.LifecyclePolicy

	// UpdatePolicy overlays the provided fields onto the current (or
	// default) policy and upserts the result. Out-of-range values are
	// rejected with apperrors.ErrInvalidPolicy.
	UpdatePolicy(ctx context.Context, workspaceID uuid.UUID, update models.PolicyUpdate) (*models.LifecyclePolicy, error)
}

type policyService struct {
	repo     repositories.PolicyRepository
	defaults config.LifecycleConfig
	cache    *redis.Client // nil disables caching
	logger   *zap.Logger
}

// NewPolicyService creates a new PolicyService. The cache client may be
// nil; policy reads then always hit the store.
func NewPolicyService(repo repositories.PolicyRepository, defaults config.LifecycleConfig, cache *redis.Client, logger *zap.Logger) PolicyService {
	return &policyService{
		repo:     repo,
		defaults: defaults,
		cache:    cache,
		logger:   logger.Named("policy-service"),
	}
}

var _ PolicyService = (*policyService)(nil)

func (s *policyService) GetPolicy(ctx context.Context, workspaceID uuid.UUID) *models.LifecyclePolicy {
	if cached := s.cacheGet(ctx, workspaceID); cached != nil {
		return cached
	}

	policy, err := s.repo.Get(ctx, workspaceID)
	if err != nil {
		s.logger.Warn("Failed to load lifecycle policy, using defaults",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		return models.DefaultPolicy(workspaceID, &s.defaults)
	}
	if policy == nil {
		return models.DefaultPolicy(workspaceID, &s.defaults)
	}

	s.cacheSet(ctx, policy)
	return policy
}

func validatePolicyUpdate(update models.PolicyUpdate) error {
	if update.PruneAfterDays != nil && *update.PruneAfterDays < 1 {
		return fmt.Errorf("prune_after_days must be at least 1: %w", apperrors.ErrInvalidPolicy)
	}
	if update.ConsolidateThreshold != nil && (*update.ConsolidateThreshold < 0 || *update.ConsolidateThreshold > 1) {
		return fmt.Errorf("consolidate_threshold must be within [0, 1]: %w", apperrors.ErrInvalidPolicy)
	}
	if update.ArchiveAfterDays != nil && *update.ArchiveAfterDays < 1 {
		return fmt.Errorf("archive_after_days must be at least 1: %w", apperrors.ErrInvalidPolicy)
	}
	if update.MaxMemoriesPerProject != nil && *update.MaxMemoriesPerProject < 1 {
		return fmt.Errorf("max_memories_per_project must be at least 1: %w", apperrors.ErrInvalidPolicy)
	}
	return nil
}

func (s *policyService) UpdatePolicy(ctx context.Context, workspaceID uuid.UUID, update models.PolicyUpdate) (*models.LifecyclePolicy, error) {
	if err := validatePolicyUpdate(update); err != nil {
		return nil, err
	}

	policy, err := s.repo.Get(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load current policy: %w", err)
	}
	if policy == nil {
		policy = models.DefaultPolicy(workspaceID, &s.defaults)
	}

	policy.Merge(update)

	if err := s.repo.Upsert(ctx, policy); err != nil {
		return nil, fmt.Errorf("upsert policy: %w", err)
	}

	s.cacheInvalidate(ctx, workspaceID)
	return policy, nil
}

func policyCacheKey(workspaceID uuid.UUID) string {
	return "mnemo:policy:" + workspaceID.String()
}

func (s *policyService) cacheGet(ctx context.Context, workspaceID uuid.UUID) *models.LifecyclePolicy {
	if s.cache == nil {
		return nil
	}

	body, err := s.cache.Get(ctx, policyCacheKey(workspaceID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Policy cache read failed", zap.Error(err))
		}
		return nil
	}

	var policy models.LifecyclePolicy
	if err := json.Unmarshal(body, &policy); err != nil {
		s.logger.Warn("Policy cache entry corrupt, ignoring", zap.Error(err))
		return nil
	}
	return &policy
}

func (s *policyService) cacheSet(ctx context.Context, policy *models.LifecyclePolicy) {
	if s.cache == nil {
		return
	}

	body, err := json.Marshal(policy)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, policyCacheKey(policy.WorkspaceID), body, policyCacheTTL).Err(); err != nil {
		s.logger.Warn("Policy cache write failed", zap.Error(err))
	}
}

func (s *policyService) cacheInvalidate(ctx context.Context, workspaceID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, policyCacheKey(workspaceID)).Err(); err != nil {
		s.logger.Warn("Policy cache invalidation failed", zap.Error(err))
	}
}
