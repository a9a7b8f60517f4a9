package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/careerlog/internal/apiclient"
	"github.com/hitoshi/careerlog/internal/config"
	"github.com/hitoshi/careerlog/internal/logger"
	"github.com/hitoshi/careerlog/internal/metrics"
	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/query"
	"github.com/hitoshi/careerlog/internal/resource"
	"github.com/hitoshi/careerlog/internal/richtext"
	"github.com/hitoshi/careerlog/internal/route"
	"github.com/hitoshi/careerlog/internal/session"
	"github.com/hitoshi/careerlog/internal/storage"
	"github.com/hitoshi/careerlog/internal/validation"
)

// Streams はCLIの入出力先。
type Streams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// App はCLIの1回の実行に必要な依存関係をまとめたもの。
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	in     io.Reader
	out    *lockedWriter
	errOut *lockedWriter
	now    func() time.Time

	kv        storage.Store
	closeKV   func() error
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	session   *session.Store
	theme     *session.ThemeStore
	cache     *query.Cache
	client    *apiclient.Client
	services  *resource.Services
	sanitizer richtext.Sanitizer
	guard     *route.Guard
	unsubs    []func()

	// expired は起動時にトークンの期限切れを検知してセッションを破棄したことを示す。
	expired bool

	navMu      sync.Mutex
	onNavigate func(to string)
}

// Init は.envと環境変数から設定を読み込み、JSON構造化ログをセットアップする。
// ログはCLIの出力と混ざらないようerrOutに出力する。
func Init(errOut io.Writer) (*config.Config, *slog.Logger, error) {
	if err := config.LoadEnvFile(""); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.SetupDefault(errOut, level), nil
}

// Run はCLIのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応する処理を実行する。
// argsにはos.Args[1:]を渡す。
func Run(ctx context.Context, streams Streams, args []string) error {
	cmd, rest, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// help は設定不要のため、初期化をスキップする
	if cmd == CommandHelp {
		printUsage(streams.Out)
		return nil
	}

	cfg, log, err := Init(streams.ErrOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	a, err := New(ctx, cfg, streams, log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Debug("コマンドを実行します",
		slog.String("command", string(cmd)),
		slog.String("api_url", cfg.APIURL),
		slog.String("storage", string(cfg.StorageBackend)),
	)

	return a.Execute(ctx, cmd, rest)
}

// New は設定から全依存関係をワイヤリングしてAppを生成する。
func New(ctx context.Context, cfg *config.Config, streams Streams, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if streams.In == nil {
		streams.In = strings.NewReader("")
	}
	if streams.ErrOut == nil {
		streams.ErrOut = io.Discard
	}

	a := &App{
		cfg:       cfg,
		logger:    log,
		in:        streams.In,
		out:       &lockedWriter{w: streams.Out},
		errOut:    &lockedWriter{w: streams.ErrOut},
		now:       time.Now,
		sanitizer: richtext.NewSanitizer(),
	}

	// 1. 永続化
	kv, closeKV, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.kv = kv
	a.closeKV = closeKV

	// 2. メトリクス
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewCollector(a.registry)

	// 3. セッション
	a.session, err = session.NewStore(ctx, kv, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	a.theme, err = session.NewThemeStore(ctx, kv)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to restore theme: %w", err)
	}

	// 4. クエリキャッシュ（ログアウト時に前ユーザーのデータを残さない）
	a.cache = query.NewCache(cfg.CacheStaleTime, a.metrics)
	a.unsubs = append(a.unsubs, a.session.Subscribe(func(s session.Session) {
		if !session.IsAuthenticated(s) {
			a.cache.Clear()
		}
	}))

	// 5. HTTPクライアントとリソースサービス
	a.client = apiclient.New(apiclient.Config{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.RequestTimeout,
		RateLimit: rate.Limit(cfg.RateLimitRPS),
		Burst:     cfg.RateLimitBurst,
	}, kv, a.session, a.metrics, log)

	a.services = resource.New(a.client, a.cache, validation.New(), a.session, resource.Config{
		DefaultPageSize: cfg.PageSize,
		MaxUploadSize:   cfg.MaxUploadSize,
	}, log)

	// 6. ルートガード
	a.guard = route.NewGuard(a.session, a.navigate)

	// 7. 期限切れトークンは401を待たずに破棄する
	if token := a.session.Token(); token != "" && session.Expired(token, a.now()) {
		log.Info("アクセストークンの有効期限が切れているためセッションを破棄します")
		a.metrics.RecordSessionTeardown("expired")
		a.expired = true
		if err := a.session.Logout(ctx); err != nil {
			log.Warn("セッションの破棄に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	return a, nil
}

// openStorage はSTORAGE_BACKENDに応じた永続化先を開く。
func openStorage(ctx context.Context, cfg *config.Config) (storage.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemoryStore(), noop, nil
	case config.StorageRedis:
		rs, err := storage.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	default:
		fs, err := storage.NewFileStore(cfg.StatePath())
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	}
}

// Close は購読と永続化先を解放する。
func (a *App) Close() {
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	if a.guard != nil {
		a.guard.Close()
	}
	if a.closeKV != nil {
		if err := a.closeKV(); err != nil {
			a.logger.Warn("永続化先のクローズに失敗しました",
				slog.String("error", err.Error()),
			)
		}
		a.closeKV = nil
	}
}

// Execute はサブコマンドを実行する。
// 実行中に401を受けてセッションが破棄された場合は、セッション失効エラーに置き換える。
func (a *App) Execute(ctx context.Context, cmd Command, args []string) error {
	err := a.dispatch(ctx, cmd, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil && apiclient.IsUnauthorized(err) {
		expired := model.NewSessionExpiredError()
		expired.Err = err
		return expired
	}
	return err
}

func (a *App) dispatch(ctx context.Context, cmd Command, args []string) error {
	switch cmd {
	case CommandHelp:
		printUsage(a.out)
		return nil
	case CommandLogin:
		return a.runLogin(ctx, args)
	case CommandLogout:
		return a.runLogout(ctx, args)
	case CommandWhoami:
		return a.runWhoami(ctx, args)
	case CommandDashboard:
		return a.runDashboard(ctx, args)
	case CommandProblems:
		return a.runProblems(ctx, args)
	case CommandProblem:
		return a.runProblem(ctx, args)
	case CommandLearnings:
		return a.runLearnings(ctx, args)
	case CommandInterviews:
		return a.runInterviews(ctx, args)
	case CommandCertifications:
		return a.runCertifications(ctx, args)
	case CommandExperiences:
		return a.runExperiences(ctx, args)
	case CommandUpload:
		return a.runUpload(ctx, args)
	case CommandTheme:
		return a.runTheme(ctx, args)
	case CommandBrowse:
		return a.runBrowse(ctx, args)
	default:
		return fmt.Errorf("unknown command: %q", cmd)
	}
}

// require はpathの画面を表示できるかをルートガードで判定する。
// ログインが必要な画面でランディングに振り替えられた場合はエラーを返す。
func (a *App) require(path string) error {
	resolved := a.guard.Visit(path)
	if resolved == route.Landing && path != route.Landing {
		if a.expired {
			return model.NewSessionExpiredError()
		}
		return model.NewUnauthenticatedError()
	}
	return nil
}

// navigate はセッションの変更によりルートガードが画面を振り替えたときに呼ばれる。
func (a *App) navigate(to string) {
	a.logger.Info("画面を遷移しました",
		slog.String("to", to),
	)
	a.navMu.Lock()
	fn := a.onNavigate
	a.navMu.Unlock()
	if fn != nil {
		fn(to)
	}
}

func (a *App) setOnNavigate(fn func(to string)) {
	a.navMu.Lock()
	a.onNavigate = fn
	a.navMu.Unlock()
}

// FormatError はCLIの境界でエラーを利用者向けのメッセージに変換する。
func FormatError(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		var b strings.Builder
		b.WriteString("エラー: ")
		b.WriteString(apiErr.Message)
		if detail := apiclient.Detail(apiErr.Err); detail != "" && apiErr.Category != model.CategoryAuth {
			b.WriteString("\n  詳細: ")
			b.WriteString(detail)
		}
		for _, name := range sortedKeys(apiErr.Fields) {
			fmt.Fprintf(&b, "\n  %s: %s", name, apiErr.Fields[name])
		}
		if apiErr.Action != "" {
			b.WriteString("\n")
			b.WriteString(apiErr.Action)
		}
		return b.String()
	}

	var httpErr *apiclient.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("エラー: APIがステータス%dを返しました: %s", httpErr.Status, httpErr.Detail)
	}
	return "エラー: " + err.Error()
}

// lockedWriter は取得結果の描画と入力処理の出力が混ざらないよう書き込みを直列化する。
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
