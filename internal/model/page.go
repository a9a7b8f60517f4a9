package model

// Page はページネーションされたリソース一覧を表す。
// Totalは検索・絞り込み後のサーバー側の総件数で、現在のページの件数ではない。
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

// TotalPages は総ページ数（ceil(Total/Size)）を返す。Sizeが0以下の場合は0。
func (p *Page[T]) TotalPages() int {
	return TotalPages(p.Total, p.Size)
}

// TotalPages は総件数とページサイズから総ページ数を算出する。
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate は全件のスライスをページに切り出す。
// サーバー側でページネーションされないリソースを一覧表示するために使う。
func Paginate[T any](all []T, page, size int) *Page[T] {
	if size <= 0 {
		size = 1
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	items := make([]T, end-start)
	copy(items, all[start:end])
	return &Page[T]{
		Items: items,
		Total: len(all),
		Page:  page,
		Size:  size,
	}
}
