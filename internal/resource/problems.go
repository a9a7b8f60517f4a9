package resource

import (
	"context"
	"net/url"

	"github.com/hitoshi/careerlog/internal/apiclient"
	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/query"
)

const problemLabel = "問題"

// ProblemService は問題（STAR形式の記録）を扱う。
type ProblemService struct {
	*base
}

// List は条件に一致する問題をページ単位で取得する。
func (s *ProblemService) List(ctx context.Context, f model.ProblemFilter) (*model.Page[model.Problem], error) {
	params := s.pageParams(f.Page, f.Size)
	setIfNotEmpty(params, "difficulty", string(f.Difficulty))
	setIfNotEmpty(params, "search", f.Search)
	setIfNotEmpty(params, "tag", f.Tag)

	page, err := query.Fetch(ctx, s.cache, ListKey(ResourceProblems, params), func(ctx context.Context) (*model.Page[model.Problem], error) {
		var out model.Page[model.Problem]
		if err := s.api.Get(ctx, "/problems", params, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, model.NewFetchFailedError(problemLabel, err)
	}
	return page, nil
}

// Get は問題を1件取得する。
func (s *ProblemService) Get(ctx context.Context, id string) (*model.Problem, error) {
	p, err := query.Fetch(ctx, s.cache, DetailKey(ResourceProblems, id), func(ctx context.Context) (*model.Problem, error) {
		var out model.Problem
		if err := s.api.Get(ctx, "/problems/"+url.PathEscape(id), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		if apiclient.IsNotFound(err) {
			nf := model.NewNotFoundError(problemLabel, id)
			nf.Err = err
			return nil, nf
		}
		return nil, model.NewFetchFailedError(problemLabel, err)
	}
	return p, nil
}

// Create は問題を作成する。
func (s *ProblemService) Create(ctx context.Context, in model.ProblemCreate) (*model.Problem, error) {
	var out model.Problem
	err := s.mutate(ctx, ResourceProblems, problemLabel, "作成", in, func(ctx context.Context) error {
		return s.api.Post(ctx, "/problems", in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update は指定したフィールドのみを更新する。
func (s *ProblemService) Update(ctx context.Context, id string, in model.ProblemUpdate) (*model.Problem, error) {
	if in.IsEmpty() {
		return nil, model.NewValidationError(map[string]string{"update": "更新する項目がありません"})
	}
	var out model.Problem
	err := s.mutate(ctx, ResourceProblems, problemLabel, "更新", in, func(ctx context.Context) error {
		return s.api.Put(ctx, "/problems/"+url.PathEscape(id), in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete は問題を削除する。
func (s *ProblemService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, ResourceProblems, problemLabel, "削除", nil, func(ctx context.Context) error {
		return s.api.Delete(ctx, "/problems/"+url.PathEscape(id))
	})
}
