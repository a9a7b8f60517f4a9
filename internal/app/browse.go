package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/careerlog/internal/listview"
	"github.com/hitoshi/careerlog/internal/metrics"
	"github.com/hitoshi/careerlog/internal/middleware"
	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/query"
	"github.com/hitoshi/careerlog/internal/resource"
	"github.com/hitoshi/careerlog/internal/richtext"
	"github.com/hitoshi/careerlog/internal/route"
)

const browseHelp = `入力した文字列で検索します。コマンド:
  :n 次のページ  :p 前のページ  :g <n> ページ指定
  :f <値> 絞り込み（:f のみで解除）  :d <id> 削除  :r 再読み込み  :q 終了`

// browser は対話的な一覧画面1つ分の定義。
type browser[T any] struct {
	path     string
	resource string
	fetch    listview.Fetcher[T]
	render   func(io.Writer, []T)
	// remove がnilのリソースは削除できない。
	remove func(ctx context.Context, id string) error
	empty  string
}

func (a *App) runBrowse(ctx context.Context, args []string) error {
	fs := a.newFlagSet("browse")
	filter := fs.String("filter", "", "絞り込みの初期値")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	name, err := requireArg(fs, "リソース（problems, learnings, interviews, certifications, experiences）")
	if err != nil {
		return err
	}

	s := a.services
	switch name {
	case "problems":
		return browse(ctx, a, *filter, browser[model.Problem]{
			path:     route.Problems,
			resource: resource.ResourceProblems,
			fetch: func(ctx context.Context, p listview.FetchParams) (*model.Page[model.Problem], error) {
				return s.Problems.List(ctx, model.ProblemFilter{
					Page:       p.Page,
					Size:       p.Size,
					Search:     p.Search,
					Difficulty: model.Difficulty(p.Filter),
				})
			},
			render: renderProblems,
			remove: s.Problems.Delete,
			empty:  "該当する問題がありません。",
		})
	case "learnings":
		return browse(ctx, a, *filter, browser[model.Learning]{
			path:     route.Learnings,
			resource: resource.ResourceLearnings,
			fetch: func(ctx context.Context, p listview.FetchParams) (*model.Page[model.Learning], error) {
				return s.Learnings.List(ctx, model.LearningFilter{
					Page:   p.Page,
					Size:   p.Size,
					Search: p.Search,
					Tag:    p.Filter,
				})
			},
			render: renderLearnings,
			remove: s.Learnings.Delete,
			empty:  "該当する学習記録がありません。",
		})
	case "interviews":
		return browse(ctx, a, *filter, browser[model.InterviewQuestion]{
			path:     route.InterviewBank,
			resource: resource.ResourceInterviews,
			fetch:    interviewFetcher(s.Interviews),
			render:   renderInterviews,
			remove:   s.Interviews.Delete,
			empty:    "該当する面接質問がありません。",
		})
	case "certifications":
		return browse(ctx, a, *filter, browser[model.Certification]{
			path:     route.Certifications,
			resource: resource.ResourceCertifications,
			fetch:    certificationFetcher(s.Certifications),
			render:   renderCertifications,
			empty:    "資格が登録されていません。",
		})
	case "experiences":
		return browse(ctx, a, *filter, browser[model.Experience]{
			path:     route.Experiences,
			resource: resource.ResourceExperiences,
			fetch:    experienceFetcher(s.Experiences),
			render:   renderExperiences,
			empty:    "職務経歴が登録されていません。",
		})
	}
	return fmt.Errorf("unknown resource: %q", name)
}

// interviewFetcher は会社名で絞り込み、質問・回答・会社名を検索する。
// 面接質問のAPIはページネーションと全文検索を持たないため、クライアント側で行う。
func interviewFetcher(svc *resource.InterviewService) listview.Fetcher[model.InterviewQuestion] {
	return listview.SliceFetcher(
		func(ctx context.Context, company string) ([]model.InterviewQuestion, error) {
			return svc.List(ctx, model.InterviewFilter{Company: company})
		},
		func(q model.InterviewQuestion, search string) bool {
			return containsFold(q.Question, search) ||
				containsFold(richtext.PlainText(q.Answer), search) ||
				containsFold(q.Company, search)
		},
	)
}

// certificationFetcher は発行元で絞り込み、名称・発行元を検索する。
func certificationFetcher(svc *resource.CertificationService) listview.Fetcher[model.Certification] {
	return listview.SliceFetcher(
		func(ctx context.Context, issuer string) ([]model.Certification, error) {
			all, err := svc.List(ctx)
			if err != nil || issuer == "" {
				return all, err
			}
			filtered := make([]model.Certification, 0, len(all))
			for _, c := range all {
				if strings.EqualFold(c.Issuer, issuer) {
					filtered = append(filtered, c)
				}
			}
			return filtered, nil
		},
		func(c model.Certification, search string) bool {
			return containsFold(c.Name, search) || containsFold(c.Issuer, search)
		},
	)
}

// experienceFetcher は会社名で絞り込み、会社名・役割・説明を検索する。
func experienceFetcher(svc *resource.ExperienceService) listview.Fetcher[model.Experience] {
	return listview.SliceFetcher(
		func(ctx context.Context, company string) ([]model.Experience, error) {
			all, err := svc.List(ctx)
			if err != nil || company == "" {
				return all, err
			}
			filtered := make([]model.Experience, 0, len(all))
			for _, e := range all {
				if strings.EqualFold(e.Company, company) {
					filtered = append(filtered, e)
				}
			}
			return filtered, nil
		},
		func(e model.Experience, search string) bool {
			desc := ""
			if e.Description != nil {
				desc = *e.Description
			}
			return containsFold(e.Company, search) || containsFold(e.Role, search) || containsFold(desc, search)
		},
	)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// browse は一覧画面を表示し、入力が終わるか:qで終了するまで操作を受け付ける。
// 取得中に401を受けてセッションが破棄されると、ルートガードがランディングへ遷移させて終了する。
func browse[T any](ctx context.Context, a *App, filter string, b browser[T]) error {
	if err := a.require(b.path); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopMetrics, err := a.serveMetrics(ctx)
	if err != nil {
		return err
	}
	defer stopMetrics()

	navigated := make(chan string, 1)
	a.setOnNavigate(func(to string) {
		select {
		case navigated <- to:
		default:
		}
	})
	defer a.setOnNavigate(nil)

	ctrl := listview.New(b.fetch, listview.Options{
		PageSize: a.cfg.PageSize,
		Debounce: a.cfg.SearchDebounce,
		Filter:   filter,
		Resource: b.resource,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
	defer ctrl.Close()

	defer ctrl.Subscribe(stateRenderer(a.out, b))()

	// 変更操作でキャッシュが無効化されたら同じページを再取得する
	defer a.cache.Subscribe(query.Key{b.resource}, func(query.Key) {
		ctrl.Refresh()
	})()

	fmt.Fprintln(a.out, browseHelp)
	ctrl.Start(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case to := <-navigated:
			if to == route.Landing {
				fmt.Fprintln(a.out, "セッションが終了したため一覧を閉じます。")
				return model.NewSessionExpiredError()
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleBrowseInput(ctx, a, ctrl, b, line); quit {
				return nil
			}
		}
	}
}

// handleBrowseInput は1行分の入力を処理する。終了する場合はtrueを返す。
func handleBrowseInput[T any](ctx context.Context, a *App, ctrl *listview.Controller[T], b browser[T], line string) bool {
	if !strings.HasPrefix(line, ":") {
		ctrl.SetSearchText(strings.TrimSpace(line))
		return false
	}

	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case ":q":
		return true
	case ":n":
		ctrl.NextPage()
	case ":p":
		ctrl.PrevPage()
	case ":g":
		page, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintln(a.out, "ページ番号を指定してください。")
			return false
		}
		ctrl.SetPage(page)
	case ":f":
		ctrl.SetFilter(arg)
	case ":r":
		ctrl.Refresh()
	case ":d":
		if b.remove == nil {
			fmt.Fprintln(a.out, "この一覧では削除できません。")
			return false
		}
		if arg == "" {
			fmt.Fprintln(a.out, "削除するIDを指定してください。")
			return false
		}
		if err := b.remove(ctx, arg); err != nil {
			fmt.Fprintln(a.out, FormatError(err))
			return false
		}
		fmt.Fprintf(a.out, "削除しました: %s\n", arg)
	default:
		fmt.Fprintln(a.out, browseHelp)
	}
	return false
}

// stateRenderer は状態・データ・エラーのいずれかが変わったときだけ一覧を描画する。
// 検索文字列の入力中（デバウンス待ち）の通知では描画しない。
func stateRenderer[T any](w io.Writer, b browser[T]) func(listview.State[T]) {
	var prev listview.State[T]
	return func(st listview.State[T]) {
		if st.Status == prev.Status && st.Data == prev.Data && st.Err == prev.Err {
			return
		}
		prev = st

		switch st.Status {
		case listview.StatusLoadingInitial:
			fmt.Fprintln(w, "読み込み中...")
		case listview.StatusRefetching:
			fmt.Fprintln(w, "更新中...")
		case listview.StatusEmpty:
			if st.Data.Total > 0 {
				fmt.Fprintf(w, "ページ %d に項目がありません（全%d件）。:p で前のページに戻れます。\n",
					st.Params.Page, st.Data.Total)
				return
			}
			fmt.Fprintln(w, b.empty)
		case listview.StatusError:
			fmt.Fprintln(w, FormatError(st.Err))
			if st.Data != nil {
				fmt.Fprintln(w, "（前回の結果を表示しています）")
			}
		case listview.StatusReady:
			if st.Params.Search != "" || st.Params.Filter != "" {
				fmt.Fprintf(w, "検索: %q  絞り込み: %q\n", st.Params.Search, st.Params.Filter)
			}
			b.render(w, st.Items())
			if st.ShowPagination() {
				renderPageFooter(w, st.Params.Page, st.TotalPages(), st.Data.Total)
			}
		}
	}
}

// serveMetrics はMETRICS_ADDRが設定されている場合に/metricsを公開する。
// 返す関数でサーバーを停止する。
func (a *App) serveMetrics(ctx context.Context) (func(), error) {
	if a.cfg.MetricsAddr == "" {
		return func() {}, nil
	}

	ln, err := net.Listen("tcp", a.cfg.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", a.cfg.MetricsAddr, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(a.logger))
	r.Use(middleware.NewLoggingMiddleware(a.logger, "metrics"))
	r.Use(middleware.NewNoStoreMiddleware())
	r.Handle("/metrics", metrics.Handler(a.registry))
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("メトリクスの公開を開始しました",
			slog.String("addr", ln.Addr().String()),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("メトリクスサーバーが停止しました",
				slog.String("error", err.Error()),
			)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
