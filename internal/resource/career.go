package resource

import (
	"context"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/query"
)

const (
	certificationLabel = "資格"
	experienceLabel    = "職務経歴"
	dashboardLabel     = "ダッシュボード"
)

// CertificationService は資格を扱う。
type CertificationService struct {
	*base
}

// List は資格を全件取得する。
func (s *CertificationService) List(ctx context.Context) ([]model.Certification, error) {
	items, err := query.Fetch(ctx, s.cache, ListKey(ResourceCertifications, nil), func(ctx context.Context) ([]model.Certification, error) {
		var out []model.Certification
		if err := s.api.Get(ctx, "/certifications", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, model.NewFetchFailedError(certificationLabel, err)
	}
	return items, nil
}

// Create は資格を登録する。
func (s *CertificationService) Create(ctx context.Context, in model.CertificationCreate) (*model.Certification, error) {
	var out model.Certification
	err := s.mutate(ctx, ResourceCertifications, certificationLabel, "登録", in, func(ctx context.Context) error {
		return s.api.Post(ctx, "/certifications", in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExperienceService は職務経歴を扱う。
type ExperienceService struct {
	*base
}

// List は職務経歴を全件取得する。
func (s *ExperienceService) List(ctx context.Context) ([]model.Experience, error) {
	items, err := query.Fetch(ctx, s.cache, ListKey(ResourceExperiences, nil), func(ctx context.Context) ([]model.Experience, error) {
		var out []model.Experience
		if err := s.api.Get(ctx, "/experiences", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, model.NewFetchFailedError(experienceLabel, err)
	}
	return items, nil
}

// Create は職務経歴を登録する。
func (s *ExperienceService) Create(ctx context.Context, in model.ExperienceCreate) (*model.Experience, error) {
	var out model.Experience
	err := s.mutate(ctx, ResourceExperiences, experienceLabel, "登録", in, func(ctx context.Context) error {
		return s.api.Post(ctx, "/experiences", in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardService はダッシュボードの集計値を扱う。
type DashboardService struct {
	*base
}

// Stats は集計値を取得する。
func (s *DashboardService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := query.Fetch(ctx, s.cache, query.Key{ResourceDashboard, "stats"}, func(ctx context.Context) (*model.DashboardStats, error) {
		var out model.DashboardStats
		if err := s.api.Get(ctx, "/dashboard/stats", nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, model.NewFetchFailedError(dashboardLabel, err)
	}
	return stats, nil
}
