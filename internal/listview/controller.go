// Package listview は検索・絞り込み・ページネーション付き一覧画面の状態を管理する。
//
// 検索文字列の入力はデバウンスし、検索条件・絞り込みが変わるとページを1に戻す。
// 取得は要求ごとに増加するIDを持ち、最後に発行した取得以外の結果は破棄する。
package listview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/careerlog/internal/metrics"
	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/observable"
)

const (
	// DefaultDebounce は検索入力のデバウンス時間。
	DefaultDebounce = 400 * time.Millisecond
	// DefaultPageSize は既定のページサイズ。
	DefaultPageSize = 10
)

// FetchParams は取得キー。いずれかが変わると再取得する。
type FetchParams struct {
	Page   int
	Size   int
	Search string
	Filter string
}

// Fetcher は1ページ分の一覧を取得する。
type Fetcher[T any] func(ctx context.Context, p FetchParams) (*model.Page[T], error)

// Timer はデバウンス用タイマー。*time.Timerがこのインターフェースを満たす。
type Timer interface {
	Stop() bool
}

// AfterFunc はdの経過後にfを実行するタイマーを開始する。
type AfterFunc func(d time.Duration, f func()) Timer

func defaultAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options はControllerの設定を保持する。
type Options struct {
	PageSize int
	Debounce time.Duration
	// Filter は絞り込みの初期値。
	Filter string
	// Resource はメトリクスとログに使うリソース名。
	Resource  string
	Metrics   metrics.MetricsCollector
	Logger    *slog.Logger
	AfterFunc AfterFunc
}

// Controller は1つの一覧画面の状態機械。
// 状態の変更は購読者に同期的に通知される。購読者のコールバック内から
// Controllerのメソッドを呼んではならない。
type Controller[T any] struct {
	fetch     Fetcher[T]
	debounce  time.Duration
	resource  string
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	afterFunc AfterFunc

	mu         sync.Mutex
	ctx        context.Context
	state      State[T]
	total      int
	totalKnown bool
	seq        uint64 // 最後に発行した取得ID
	timer      Timer
	started    bool
	closed     bool

	cell *observable.Cell[State[T]]
}

// New はControllerを生成する。Startを呼ぶまで取得は行わない。
func New[T any](fetch Fetcher[T], opts Options) *Controller[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = defaultAfterFunc
	}

	initial := State[T]{
		Status: StatusIdle,
		Params: FetchParams{Page: 1, Size: opts.PageSize, Filter: opts.Filter},
	}
	return &Controller[T]{
		fetch:     fetch,
		debounce:  opts.Debounce,
		resource:  opts.Resource,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		afterFunc: opts.AfterFunc,
		ctx:       context.Background(),
		state:     initial,
		cell:      observable.NewCell(initial),
	}
}

// State は現在の状態のスナップショットを返す。
func (c *Controller[T]) State() State[T] {
	return c.cell.Get()
}

// Subscribe は状態変更の通知を受け取るコールバックを登録する。
func (c *Controller[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	return c.cell.Subscribe(fn)
}

// Start は最初の取得を行う。2回目以降の呼び出しは何もしない。
func (c *Controller[T]) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	c.ctx = ctx
	c.issueLocked(c.state.Params)
}

// SetSearchText は入力中の検索文字列を受け取る。キー入力ごとに呼ばれることを想定する。
// 直前のタイマーを止めてデバウンスを開始し、入力が止まった時点で検索条件に反映する。
func (c *Controller[T]) SetSearchText(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.afterFunc(c.debounce, func() { c.applySearch(raw) })

	c.state.RawSearch = raw
	c.publishLocked()
}

// applySearch はデバウンス後の検索文字列を検索条件に反映する。
func (c *Controller[T]) applySearch(search string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || search == c.state.Params.Search {
		return
	}
	next := c.state.Params
	next.Search = search
	next.Page = 1
	c.totalKnown = false
	if !c.started {
		c.state.Params = next
		c.publishLocked()
		return
	}
	c.issueLocked(next)
}

// SetFilter は絞り込み条件を変更し、ページを1に戻す。
func (c *Controller[T]) SetFilter(filter string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || filter == c.state.Params.Filter {
		return
	}
	next := c.state.Params
	next.Filter = filter
	next.Page = 1
	c.totalKnown = false
	if !c.started {
		c.state.Params = next
		c.publishLocked()
		return
	}
	c.issueLocked(next)
}

// SetPage はページを変更する。範囲外のページは1から総ページ数の範囲に丸める。
// 総件数が未取得の間（検索条件・絞り込みの変更直後を含む）は1ページ目のみ指定できる。
func (c *Controller[T]) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.started {
		return
	}
	page = c.clampLocked(page)
	if page == c.state.Params.Page {
		return
	}
	next := c.state.Params
	next.Page = page
	c.issueLocked(next)
}

// NextPage は次のページに移動する。最終ページでは何もしない。
func (c *Controller[T]) NextPage() {
	st := c.State()
	if !st.CanNext() {
		return
	}
	c.SetPage(st.Params.Page + 1)
}

// PrevPage は前のページに移動する。1ページ目では何もしない。
func (c *Controller[T]) PrevPage() {
	st := c.State()
	if !st.CanPrev() {
		return
	}
	c.SetPage(st.Params.Page - 1)
}

// Refresh は現在の条件のまま再取得する。ページは変更しない。
// キャッシュが無効化された後に呼ぶ。
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.started {
		return
	}
	c.issueLocked(c.state.Params)
}

// Close はタイマーを止め、以降の取得結果をすべて破棄する。
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
}

func (c *Controller[T]) clampLocked(page int) int {
	if !c.totalKnown {
		return 1
	}
	last := model.TotalPages(c.total, c.state.Params.Size)
	if last < 1 {
		last = 1
	}
	if page > last {
		page = last
	}
	if page < 1 {
		page = 1
	}
	return page
}

// issueLocked は取得キーを更新して新しい取得を開始する。c.muを保持して呼ぶこと。
func (c *Controller[T]) issueLocked(params FetchParams) {
	c.seq++
	id := c.seq

	c.state.Params = params
	c.state.Err = nil
	if c.state.Data == nil {
		c.state.Status = StatusLoadingInitial
		c.state.Stale = false
	} else {
		c.state.Status = StatusRefetching
		c.state.Stale = true
	}
	c.publishLocked()

	ctx := c.ctx
	go c.run(ctx, id, params)
}

func (c *Controller[T]) run(ctx context.Context, id uint64, params FetchParams) {
	page, err := c.fetch(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || id != c.seq {
		c.metrics.RecordStaleResponseDiscarded(c.resource)
		c.logger.Debug("古い取得結果を破棄しました",
			slog.String("resource", c.resource),
			slog.Int("page", params.Page),
			slog.String("search", params.Search),
			slog.String("filter", params.Filter),
		)
		return
	}

	if err != nil {
		c.state.Status = StatusError
		c.state.Err = err
		c.state.Stale = c.state.Data != nil
		c.publishLocked()
		c.logger.Warn("一覧の取得に失敗しました",
			slog.String("resource", c.resource),
			slog.String("error", err.Error()),
		)
		return
	}

	// 削除で現在のページが空になってもページは補正しない。空のページをそのまま表示する
	c.total = page.Total
	c.totalKnown = true
	c.state.Data = page
	c.state.DataParams = params
	c.state.Stale = false
	if len(page.Items) == 0 {
		c.state.Status = StatusEmpty
	} else {
		c.state.Status = StatusReady
	}
	c.publishLocked()
}

func (c *Controller[T]) publishLocked() {
	c.cell.Set(c.state)
}
