package resource

import (
	"context"
	"net/url"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/query"
)

const learningLabel = "学習記録"

// LearningService は学習記録を扱う。
type LearningService struct {
	*base
}

// List は条件に一致する学習記録をページ単位で取得する。
func (s *LearningService) List(ctx context.Context, f model.LearningFilter) (*model.Page[model.Learning], error) {
	params := s.pageParams(f.Page, f.Size)
	setIfNotEmpty(params, "search", f.Search)
	setIfNotEmpty(params, "tag", f.Tag)

	page, err := query.Fetch(ctx, s.cache, ListKey(ResourceLearnings, params), func(ctx context.Context) (*model.Page[model.Learning], error) {
		var out model.Page[model.Learning]
		if err := s.api.Get(ctx, "/learnings", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, model.NewFetchFailedError(learningLabel, err)
	}
	return page, nil
}

// Create は学習記録を作成する。
func (s *LearningService) Create(ctx context.Context, in model.LearningCreate) (*model.Learning, error) {
	var out model.Learning
	err := s.mutate(ctx, ResourceLearnings, learningLabel, "作成", in, func(ctx context.Context) error {
		return s.api.Post(ctx, "/learnings", in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete は学習記録を削除する。
func (s *LearningService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, ResourceLearnings, learningLabel, "削除", nil, func(ctx context.Context) error {
		return s.api.Delete(ctx, "/learnings/"+url.PathEscape(id))
	})
}
