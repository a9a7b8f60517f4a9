package resource

import (
	"context"
	"net/url"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/query"
)

const interviewLabel = "面接質問"

// InterviewService は面接質問を扱う。サーバー側は全件を返す。
type InterviewService struct {
	*base
}

// List は条件に一致する面接質問を全件取得する。
func (s *InterviewService) List(ctx context.Context, f model.InterviewFilter) ([]model.InterviewQuestion, error) {
	params := url.Values{}
	setIfNotEmpty(params, "company", f.Company)
	setIfNotEmpty(params, "date_from", f.DateFrom.String())
	setIfNotEmpty(params, "date_to", f.DateTo.String())

	items, err := query.Fetch(ctx, s.cache, ListKey(ResourceInterviews, params), func(ctx context.Context) ([]model.InterviewQuestion, error) {
		var out []model.InterviewQuestion
		if err := s.api.Get(ctx, "/interview-questions", params, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, model.NewFetchFailedError(interviewLabel, err)
	}
	return items, nil
}

// Create は面接質問を登録する。
func (s *InterviewService) Create(ctx context.Context, in model.InterviewQuestionCreate) (*model.InterviewQuestion, error) {
	var out model.InterviewQuestion
	err := s.mutate(ctx, ResourceInterviews, interviewLabel, "登録", in, func(ctx context.Context) error {
		return s.api.Post(ctx, "/interview-questions", in, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete は面接質問を削除する。
func (s *InterviewService) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, ResourceInterviews, interviewLabel, "削除", nil, func(ctx context.Context) error {
		return s.api.Delete(ctx, "/interview-questions/"+url.PathEscape(id))
	})
}
