package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/careerlog/internal/auth"
	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/richtext"
	"github.com/hitoshi/careerlog/internal/route"
	"github.com/hitoshi/careerlog/internal/session"
)

// dateFlag はYYYY-MM-DD形式の日付フラグ。
type dateFlag struct {
	date model.Date
	set  bool
}

func (d *dateFlag) String() string { return d.date.String() }

func (d *dateFlag) Set(s string) error {
	parsed, err := model.ParseDate(s)
	if err != nil {
		return err
	}
	d.date = parsed
	d.set = true
	return nil
}

// ptr は指定された場合のみ日付のポインタを返す。
func (d *dateFlag) ptr() *model.Date {
	if !d.set {
		return nil
	}
	v := d.date
	return &v
}

func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("careerlog "+name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parseFlags はフラグを解析する。位置引数の後ろに置かれたフラグも受け付ける。
// -hの場合はflag.ErrHelpを返す。
func parseFlags(fs *flag.FlagSet, args []string) error {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return err
			}
			return fmt.Errorf("invalid arguments: %w", err)
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	return fs.Parse(append([]string{"--"}, positional...))
}

// subcommand は "list|add|delete" 形式のサブコマンドを取り出す。省略時はdefを返す。
func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 || (len(args[0]) > 0 && args[0][0] == '-') {
		return def, args
	}
	return args[0], args[1:]
}

func requireArg(fs *flag.FlagSet, name string) (string, error) {
	if fs.NArg() < 1 || fs.Arg(0) == "" {
		return "", fmt.Errorf("%s を指定してください", name)
	}
	return fs.Arg(0), nil
}

func (a *App) runLogin(ctx context.Context, args []string) error {
	fs := a.newFlagSet("login")
	code := fs.String("code", "", "取得済みの認可コード（ブラウザを使わずに交換する）")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if a.guard.Visit(route.Login) != route.Login {
		if user := a.session.Get().User; user != nil {
			fmt.Fprintf(a.out, "既に %s としてログインしています。\n", user.Email)
		} else {
			fmt.Fprintln(a.out, "既にログインしています。")
		}
		return nil
	}

	flow := auth.NewFlow(a.services.Auth, auth.FlowConfig{
		CallbackAddr: a.cfg.CallbackAddr(),
		Timeout:      a.cfg.LoginTimeout,
	}, a.out, a.logger)

	var (
		user *model.User
		err  error
	)
	if *code != "" {
		user, err = flow.LoginWithCode(ctx, *code)
	} else {
		user, err = flow.Login(ctx)
	}
	if err != nil {
		return err
	}

	a.guard.Visit(route.Dashboard)
	fmt.Fprintf(a.out, "%s（%s）としてログインしました。\n", user.FullName, user.Email)
	return nil
}

func (a *App) runLogout(ctx context.Context, args []string) error {
	fs := a.newFlagSet("logout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	wasAuthenticated := a.session.IsAuthenticated()
	if err := a.services.Auth.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	if wasAuthenticated {
		fmt.Fprintln(a.out, "ログアウトしました。")
	} else {
		fmt.Fprintln(a.out, "ログインしていません。")
	}
	return nil
}

func (a *App) runWhoami(ctx context.Context, args []string) error {
	fs := a.newFlagSet("whoami")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.require(route.Dashboard); err != nil {
		return err
	}

	user, err := a.services.Auth.Me(ctx)
	if err != nil {
		if !a.session.IsAuthenticated() {
			return err
		}
		// 取得できなくてもキャッシュ済みのプロフィールを表示する
		a.logger.Warn("ユーザー情報の再取得に失敗しました",
			slog.String("error", err.Error()),
		)
		user = a.session.Get().User
		if user == nil {
			return err
		}
	}

	tw := newTable(a.out)
	fmt.Fprintf(tw, "名前\t%s\n", user.FullName)
	fmt.Fprintf(tw, "メール\t%s\n", user.Email)
	if exp, ok := session.ExpiresAt(a.session.Token()); ok {
		fmt.Fprintf(tw, "トークン有効期限\t%s\n", exp.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *App) runDashboard(ctx context.Context, args []string) error {
	fs := a.newFlagSet("dashboard")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.require(route.Dashboard); err != nil {
		return err
	}

	stats, err := a.services.Dashboard.Stats(ctx)
	if err != nil {
		return err
	}
	renderDashboard(a.out, stats)
	return nil
}

func (a *App) runProblems(ctx context.Context, args []string) error {
	fs := a.newFlagSet("problems")
	page := fs.Int("page", 1, "ページ番号")
	search := fs.String("search", "", "タイトル・本文の検索")
	difficulty := fs.String("difficulty", "", "難易度（Easy, Medium, Hard）")
	tag := fs.String("tag", "", "タグ")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.require(route.Problems); err != nil {
		return err
	}

	result, err := a.services.Problems.List(ctx, model.ProblemFilter{
		Page:       *page,
		Difficulty: model.Difficulty(*difficulty),
		Search:     *search,
		Tag:        *tag,
	})
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		fmt.Fprintln(a.out, "該当する問題がありません。")
		return nil
	}
	renderProblems(a.out, result.Items)
	renderPageFooter(a.out, result.Page, result.TotalPages(), result.Total)
	return nil
}

func (a *App) runProblem(ctx context.Context, args []string) error {
	sub, rest := subcommand(args, "")
	switch sub {
	case "show":
		return a.runProblemShow(ctx, rest)
	case "new":
		return a.runProblemNew(ctx, rest)
	case "edit":
		return a.runProblemEdit(ctx, rest)
	case "delete":
		return a.runProblemDelete(ctx, rest)
	default:
		return fmt.Errorf("usage: careerlog problem show|new|edit|delete")
	}
}

func (a *App) runProblemShow(ctx context.Context, args []string) error {
	fs := a.newFlagSet("problem show")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := requireArg(fs, "問題ID")
	if err != nil {
		return err
	}
	if err := a.require(route.Problems); err != nil {
		return err
	}

	p, err := a.services.Problems.Get(ctx, id)
	if err != nil {
		return err
	}
	renderProblemDetail(a.out, p, a.plainText)
	return nil
}

// plainText は保存済みのリッチテキストを無害化し、端末表示用のテキストにする。
func (a *App) plainText(s string) string {
	return richtext.PlainText(a.sanitizer.Sanitize(s))
}

// problemFlags は作成・編集で共通のフラグ。
type problemFlags struct {
	title      *string
	company    *string
	difficulty *string
	situation  *string
	task       *string
	action     *string
	result     *string
	tags       *string
	solvedAt   dateFlag
}

func bindProblemFlags(fs *flag.FlagSet) *problemFlags {
	f := &problemFlags{
		title:      fs.String("title", "", "タイトル"),
		company:    fs.String("company", "", "会社・背景"),
		difficulty: fs.String("difficulty", "", "難易度（Easy, Medium, Hard）"),
		situation:  fs.String("situation", "", "Situation（状況）"),
		task:       fs.String("task", "", "Task（課題）"),
		action:     fs.String("action", "", "Action（行動）"),
		result:     fs.String("result", "", "Result（結果）"),
		tags:       fs.String("tags", "", "カンマ区切りのタグ"),
	}
	fs.Var(&f.solvedAt, "solved-at", "解決日（YYYY-MM-DD）")
	return f
}

func (a *App) runProblemNew(ctx context.Context, args []string) error {
	fs := a.newFlagSet("problem new")
	f := bindProblemFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.require(route.NewProblem); err != nil {
		return err
	}

	difficulty := model.Difficulty(*f.difficulty)
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	p, err := a.services.Problems.Create(ctx, model.ProblemCreate{
		Title:          *f.title,
		CompanyContext: *f.company,
		Difficulty:     difficulty,
		Situation:      richtext.FromPlainText(*f.situation),
		Task:           richtext.FromPlainText(*f.task),
		Action:         richtext.FromPlainText(*f.action),
		Result:         richtext.FromPlainText(*f.result),
		Tags:           richtext.ParseTags(*f.tags),
		SolvedAt:       f.solvedAt.date,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "問題を作成しました: %s\n", p.ID)
	return nil
}

func (a *App) runProblemEdit(ctx context.Context, args []string) error {
	fs := a.newFlagSet("problem edit")
	f := bindProblemFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := requireArg(fs, "問題ID")
	if err != nil {
		return err
	}
	if err := a.require(route.Problems); err != nil {
		return err
	}

	// 指定されたフラグのみ送信する
	var in model.ProblemUpdate
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "title":
			in.Title = f.title
		case "company":
			in.CompanyContext = f.company
		case "difficulty":
			d := model.Difficulty(*f.difficulty)
			in.Difficulty = &d
		case "situation":
			in.Situation = richPtr(*f.situation)
		case "task":
			in.Task = richPtr(*f.task)
		case "action":
			in.Action = richPtr(*f.action)
		case "result":
			in.Result = richPtr(*f.result)
		case "tags":
			in.Tags = richtext.ParseTags(*f.tags)
		case "solved-at":
			in.SolvedAt = f.solvedAt.ptr()
		}
	})

	p, err := a.services.Problems.Update(ctx, id, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "問題を更新しました: %s\n", p.ID)
	return nil
}

func richPtr(s string) *string {
	v := richtext.FromPlainText(s)
	return &v
}

func (a *App) runProblemDelete(ctx context.Context, args []string) error {
	fs := a.newFlagSet("problem delete")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := requireArg(fs, "問題ID")
	if err != nil {
		return err
	}
	if err := a.require(route.Problems); err != nil {
		return err
	}

	if err := a.services.Problems.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "問題を削除しました: %s\n", id)
	return nil
}

func (a *App) runLearnings(ctx context.Context, args []string) error {
	sub, rest := subcommand(args, "list")
	if err := a.require(route.Learnings); err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := a.newFlagSet("learnings list")
		page := fs.Int("page", 1, "ページ番号")
		search := fs.String("search", "", "内容の検索")
		tag := fs.String("tag", "", "タグ")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		result, err := a.services.Learnings.List(ctx, model.LearningFilter{Page: *page, Search: *search, Tag: *tag})
		if err != nil {
			return err
		}
		if len(result.Items) == 0 {
			fmt.Fprintln(a.out, "該当する学習記録がありません。")
			return nil
		}
		renderLearnings(a.out, result.Items)
		renderPageFooter(a.out, result.Page, result.TotalPages(), result.Total)
		return nil

	case "add":
		fs := a.newFlagSet("learnings add")
		topic := fs.String("topic", "", "学んだこと")
		tags := fs.String("tags", "", "カンマ区切りのタグ")
		var date dateFlag
		fs.Var(&date, "date", "日付（YYYY-MM-DD、省略時は当日）")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		l, err := a.services.Learnings.Create(ctx, model.LearningCreate{
			Topic:       richtext.FromPlainText(*topic),
			LearnedDate: date.date,
			Tags:        richtext.ParseTags(*tags),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "学習記録を作成しました: %s\n", l.ID)
		return nil

	case "delete":
		fs := a.newFlagSet("learnings delete")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		id, err := requireArg(fs, "学習記録ID")
		if err != nil {
			return err
		}
		if err := a.services.Learnings.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "学習記録を削除しました: %s\n", id)
		return nil
	}
	return fmt.Errorf("usage: careerlog learnings list|add|delete")
}

func (a *App) runInterviews(ctx context.Context, args []string) error {
	sub, rest := subcommand(args, "list")
	if err := a.require(route.InterviewBank); err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := a.newFlagSet("interviews list")
		company := fs.String("company", "", "会社名")
		var from, to dateFlag
		fs.Var(&from, "from", "この日以降（YYYY-MM-DD）")
		fs.Var(&to, "to", "この日以前（YYYY-MM-DD）")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		items, err := a.services.Interviews.List(ctx, model.InterviewFilter{
			Company:  *company,
			DateFrom: from.date,
			DateTo:   to.date,
		})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(a.out, "該当する面接質問がありません。")
			return nil
		}
		renderInterviews(a.out, items)
		return nil

	case "add":
		fs := a.newFlagSet("interviews add")
		question := fs.String("question", "", "質問")
		answer := fs.String("answer", "", "回答")
		company := fs.String("company", "", "会社名")
		var date dateFlag
		fs.Var(&date, "date", "質問された日（YYYY-MM-DD）")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		q, err := a.services.Interviews.Create(ctx, model.InterviewQuestionCreate{
			Question:  *question,
			Answer:    richtext.FromPlainText(*answer),
			Company:   *company,
			AskedDate: date.date,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "面接質問を作成しました: %s\n", q.ID)
		return nil

	case "delete":
		fs := a.newFlagSet("interviews delete")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		id, err := requireArg(fs, "面接質問ID")
		if err != nil {
			return err
		}
		if err := a.services.Interviews.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "面接質問を削除しました: %s\n", id)
		return nil
	}
	return fmt.Errorf("usage: careerlog interviews list|add|delete")
}

func (a *App) runCertifications(ctx context.Context, args []string) error {
	sub, rest := subcommand(args, "list")
	if err := a.require(route.Certifications); err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := a.newFlagSet("certifications list")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		items, err := a.services.Certifications.List(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(a.out, "資格が登録されていません。")
			return nil
		}
		renderCertifications(a.out, items)
		return nil

	case "add":
		fs := a.newFlagSet("certifications add")
		name := fs.String("name", "", "資格名")
		issuer := fs.String("issuer", "", "発行元")
		credentialURL := fs.String("url", "", "認定証のURL")
		var issued, expires dateFlag
		fs.Var(&issued, "issued", "取得日（YYYY-MM-DD）")
		fs.Var(&expires, "expires", "有効期限（YYYY-MM-DD）")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		c, err := a.services.Certifications.Create(ctx, model.CertificationCreate{
			Name:          *name,
			Issuer:        *issuer,
			IssueDate:     issued.date,
			ExpiryDate:    expires.ptr(),
			CredentialURL: *credentialURL,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "資格を登録しました: %s\n", c.ID)
		return nil
	}
	return fmt.Errorf("usage: careerlog certifications list|add")
}

func (a *App) runExperiences(ctx context.Context, args []string) error {
	sub, rest := subcommand(args, "list")
	if err := a.require(route.Experiences); err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := a.newFlagSet("experiences list")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		items, err := a.services.Experiences.List(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(a.out, "職務経歴が登録されていません。")
			return nil
		}
		renderExperiences(a.out, items)
		return nil

	case "add":
		fs := a.newFlagSet("experiences add")
		company := fs.String("company", "", "会社名")
		role := fs.String("role", "", "役割")
		description := fs.String("description", "", "説明")
		var start, end dateFlag
		fs.Var(&start, "start", "開始日（YYYY-MM-DD）")
		fs.Var(&end, "end", "終了日（YYYY-MM-DD、在職中は省略）")
		if err := parseFlags(fs, rest); err != nil {
			return err
		}
		e, err := a.services.Experiences.Create(ctx, model.ExperienceCreate{
			Company:     *company,
			Role:        *role,
			StartDate:   start.date,
			EndDate:     end.ptr(),
			Description: *description,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "職務経歴を登録しました: %s\n", e.ID)
		return nil
	}
	return fmt.Errorf("usage: careerlog experiences list|add")
}

func (a *App) runUpload(ctx context.Context, args []string) error {
	fs := a.newFlagSet("upload")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	path, err := requireArg(fs, "ファイル")
	if err != nil {
		return err
	}
	if err := a.require(route.NewProblem); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	result, err := a.services.Uploads.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, result.URL)
	return nil
}

func (a *App) runTheme(ctx context.Context, args []string) error {
	fs := a.newFlagSet("theme")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	switch fs.Arg(0) {
	case "":
	case "toggle":
		if _, err := a.theme.Toggle(ctx); err != nil {
			return err
		}
	default:
		if err := a.theme.Set(ctx, session.Theme(fs.Arg(0))); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "テーマ: %s\n", a.theme.Get())
	return nil
}
