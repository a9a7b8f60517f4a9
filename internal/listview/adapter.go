package listview

import (
	"context"

	"github.com/hitoshi/careerlog/internal/model"
)

// SliceFetcher はページネーションを持たないリソースをFetcherに変換する。
// loadで全件を取得し、matchesで検索文字列に一致する項目に絞ってからページに切り出す。
// matchesがnilの場合は検索しない。
func SliceFetcher[T any](load func(ctx context.Context, filter string) ([]T, error), matches func(item T, search string) bool) Fetcher[T] {
	return func(ctx context.Context, p FetchParams) (*model.Page[T], error) {
		all, err := load(ctx, p.Filter)
		if err != nil {
			return nil, err
		}
		if p.Search != "" && matches != nil {
			filtered := make([]T, 0, len(all))
			for _, item := range all {
				if matches(item, p.Search) {
					filtered = append(filtered, item)
				}
			}
			all = filtered
		}
		return model.Paginate(all, p.Page, p.Size), nil
	}
}
