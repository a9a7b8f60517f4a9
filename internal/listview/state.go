package listview

import "github.com/hitoshi/careerlog/internal/model"

// Status は一覧画面の状態。
type Status int

const (
	// StatusIdle はStart前。
	StatusIdle Status = iota
	// StatusLoadingInitial は初回取得中（表示するデータがない）。
	StatusLoadingInitial
	// StatusReady は取得済みで1件以上ある。
	StatusReady
	// StatusRefetching は条件変更後の取得中。前回のデータを表示し続ける。
	StatusRefetching
	// StatusEmpty は取得済みで0件。
	StatusEmpty
	// StatusError は直近の取得が失敗した。前回のデータは保持される。
	StatusError
)

// String は状態名を返す。
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoadingInitial:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusRefetching:
		return "refetching"
	case StatusEmpty:
		return "empty"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// State は一覧画面の表示状態。
type State[T any] struct {
	Status Status
	// Params は現在の取得キー（有効な検索条件・絞り込み・ページ）。
	Params FetchParams
	// RawSearch はデバウンス前の入力中の検索文字列。
	RawSearch string
	// Data は最後に成功した取得結果。Staleの場合は別の条件の結果。
	Data *model.Page[T]
	// DataParams はDataを取得したときの取得キー。
	DataParams FetchParams
	Stale      bool
	Err        error
}

// Items は表示する項目を返す。データがない場合はnil。
func (s State[T]) Items() []T {
	if s.Data == nil {
		return nil
	}
	return s.Data.Items
}

// TotalPages は総ページ数を返す。現在の検索条件・絞り込みでの総件数が未取得の場合は0。
func (s State[T]) TotalPages() int {
	if !s.HasCurrentTotal() {
		return 0
	}
	return model.TotalPages(s.Data.Total, s.Params.Size)
}

// HasCurrentTotal はDataが現在の検索条件・絞り込みで取得したものかを返す。
// ページだけが異なる場合は総件数を流用できる。
func (s State[T]) HasCurrentTotal() bool {
	return s.Data != nil &&
		s.DataParams.Search == s.Params.Search &&
		s.DataParams.Filter == s.Params.Filter
}

// CanPrev は前のページに移動できるかを返す。
func (s State[T]) CanPrev() bool {
	return s.Params.Page > 1
}

// CanNext は次のページに移動できるかを返す。
func (s State[T]) CanNext() bool {
	return s.Params.Page < s.TotalPages()
}

// ShowPagination はページ送りを表示するかを返す。1ページ以下の場合は表示しない。
func (s State[T]) ShowPagination() bool {
	return s.TotalPages() > 1
}
