package service

import (
	"context"
	"errors"
	"fmt"
	"skillcert_backend/internal/config"
	"skillcert_backend/internal/gate"
	"skillcert_backend/internal/model"
	"skillcert_backend/internal/repository"
	"skillcert_backend/internal/util"
	"skillcert_backend/pkg/logger"
	"skillcert_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificationPolicy holds the pass score and validity, which can be reloaded at runtime.
type CertificationPolicy struct {
	mu        sync.RWMutex
	passScore int
	validity  time.Duration
}

func NewCertificationPolicy(cfg config.CertificationConfig) *CertificationPolicy {
	p := &CertificationPolicy{}
	p.Update(cfg)
	return p
}

func (p *CertificationPolicy) Update(cfg config.CertificationConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passScore = cfg.PassScore
	if p.passScore <= 0 {
		p.passScore = gate.DefaultPassScore
	}
	p.validity = cfg.Validity()
	if p.validity <= 0 {
		p.validity = 365 * 24 * time.Hour
	}
}

func (p *CertificationPolicy) PassScore() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.passScore
}

// PassScoreFor prefers the test's own threshold when it sets one.
func (p *CertificationPolicy) PassScoreFor(test *model.SkillTest) int {
	if test != nil && test.PassScore > 0 {
		return test.PassScore
	}
	return p.PassScore()
}

// Issue builds a certification for a passed submission. The caller persists it.
func (p *CertificationPolicy) Issue(sub *model.TestSubmission, score int, now time.Time) (*model.Certification, error) {
	p.mu.RLock()
	validity := p.validity
	p.mu.RUnlock()

	cert := &model.Certification{
		UserID:       sub.UserID,
		Skill:        sub.Skill,
		SubmissionID: sub.ID,
		Score:        score,
		IssuedAt:     now,
		ExpiresAt:    now.Add(validity),
		Status:       model.CertificationActive,
	}
	if err := cert.Validate(); err != nil {
		return nil, err
	}
	return cert, nil
}

type CertificationService struct {
	UserRepo *repository.UserRepository
	CertRepo *repository.CertificationRepository
	Policy   *CertificationPolicy
	Cache    CertificationCache
	now      func() time.Time
}

func NewCertificationService(userRepo *repository.UserRepository, certRepo *repository.CertificationRepository, policy *CertificationPolicy, cache CertificationCache) *CertificationService {
	if cache == nil {
		cache = noCache{}
	}
	return &CertificationService{
		UserRepo: userRepo,
		CertRepo: certRepo,
		Policy:   policy,
		Cache:    cache,
		now:      time.Now,
	}
}

// UserProfile is the payload of GET /api/users/:id.
type UserProfile struct {
	ID             uint                  `json:"_id"`
	Name           string                `json:"name"`
	Email          string                `json:"email"`
	Role           model.UserRole        `json:"role"`
	IsSeller       bool                  `json:"isSeller"`
	Certifications []model.Certification `json:"certifications"`
}

// ListForUser reads through the cache. Stored statuses are refreshed against the clock.
func (s *CertificationService) ListForUser(ctx context.Context, userID uint) ([]model.Certification, error) {
	certs, hit, err := s.Cache.Get(ctx, userID)
	if err != nil {
		logger.Log.Warn("certification cache read failed", zap.Uint("userId", userID), zap.Error(err))
	}
	if !hit {
		certs, err = s.CertRepo.ListByUser(userID)
		if err != nil {
			return nil, err
		}
		if err := s.Cache.Set(ctx, userID, certs); err != nil {
			logger.Log.Warn("certification cache write failed", zap.Uint("userId", userID), zap.Error(err))
		}
	}

	now := s.now()
	for i := range certs {
		certs[i].Status = certs[i].EffectiveStatus(now)
	}
	if certs == nil {
		certs = []model.Certification{}
	}
	return certs, nil
}

func (s *CertificationService) GetProfile(ctx context.Context, userID uint) (*UserProfile, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	certs, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserProfile{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Role:           user.Role,
		IsSeller:       user.IsSeller,
		Certifications: certs,
	}, nil
}

func (s *CertificationService) Check(ctx context.Context, userID uint) (gate.Decision, error) {
	certs, err := s.ListForUser(ctx, userID)
	if err != nil {
		return gate.Decision{}, err
	}
	return gate.Decide(certs, s.Policy.PassScore()), nil
}

// RegisterSeller flips the user to seller when the gate allows it. The returned
// decision explains a refusal; err is only set for storage failures.
func (s *CertificationService) RegisterSeller(ctx context.Context, userID uint) (gate.Decision, error) {
	decision, err := s.Check(ctx, userID)
	if err != nil {
		return decision, err
	}
	if !decision.Allowed() {
		return decision, nil
	}
	if err := s.UserRepo.MarkSeller(userID, s.now()); err != nil {
		return decision, fmt.Errorf("mark seller: %w", err)
	}
	return decision, nil
}

func (s *CertificationService) Invalidate(ctx context.Context, userIDs ...uint) {
	if err := s.Cache.Invalidate(ctx, userIDs...); err != nil {
		logger.Log.Warn("certification cache invalidate failed", zap.Error(err))
	}
}

// ExpireOverdue is run periodically from the app's background loop.
func (s *CertificationService) ExpireOverdue(ctx context.Context) error {
	userIDs, err := s.CertRepo.ExpireOverdue(s.now())
	if err != nil {
		return err
	}
	if len(userIDs) > 0 {
		monitoring.CertificationsExpired.Add(float64(len(userIDs)))
		s.Invalidate(ctx, userIDs...)
	}
	return nil
}
