package app

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/hitoshi/careerlog/internal/model"
	"github.com/hitoshi/careerlog/internal/richtext"
)

// excerptRunes は一覧に表示するリッチテキストの最大文字数。
const excerptRunes = 40

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderProblems(w io.Writer, items []model.Problem) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tタイトル\t難易度\tタグ\t解決日")
	for _, p := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Title, p.Difficulty, richtext.FormatTags(p.Tags), p.SolvedAt)
	}
	tw.Flush()
}

func renderLearnings(w io.Writer, items []model.Learning) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\t内容\tタグ\t日付")
	for _, l := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			l.ID, richtext.Excerpt(l.Topic, excerptRunes), richtext.FormatTags(l.Tags), l.LearnedDate)
	}
	tw.Flush()
}

func renderInterviews(w io.Writer, items []model.InterviewQuestion) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\t会社\t質問\t回答\t日付")
	for _, q := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			q.ID, q.Company, q.Question, richtext.Excerpt(q.Answer, excerptRunes), q.AskedDate)
	}
	tw.Flush()
}

func renderCertifications(w io.Writer, items []model.Certification) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\t名称\t発行元\t取得日\t有効期限")
	for _, c := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.Issuer, c.IssueDate, dateOrDash(c.ExpiryDate))
	}
	tw.Flush()
}

func renderExperiences(w io.Writer, items []model.Experience) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\t会社\t役割\t期間")
	for _, e := range items {
		end := "現在"
		if e.EndDate != nil && !e.EndDate.IsZero() {
			end = e.EndDate.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s - %s\n", e.ID, e.Company, e.Role, e.StartDate, end)
	}
	tw.Flush()
}

func renderProblemDetail(w io.Writer, p *model.Problem, plain func(string) string) {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID\t%s\n", p.ID)
	fmt.Fprintf(tw, "タイトル\t%s\n", p.Title)
	fmt.Fprintf(tw, "難易度\t%s\n", p.Difficulty)
	fmt.Fprintf(tw, "会社・背景\t%s\n", stringOrDash(p.CompanyContext))
	fmt.Fprintf(tw, "タグ\t%s\n", richtext.FormatTags(p.Tags))
	fmt.Fprintf(tw, "解決日\t%s\n", p.SolvedAt)
	tw.Flush()

	sections := []struct {
		label string
		body  string
	}{
		{"Situation", p.Situation},
		{"Task", p.Task},
		{"Action", p.Action},
		{"Result", p.Result},
	}
	for _, s := range sections {
		fmt.Fprintf(w, "\n[%s]\n%s\n", s.label, plain(s.body))
	}
}

func renderDashboard(w io.Writer, s *model.DashboardStats) {
	tw := newTable(w)
	fmt.Fprintf(tw, "問題\t%d\n", s.TotalProblems)
	fmt.Fprintf(tw, "職務経歴\t%d\n", s.TotalExperiences)
	fmt.Fprintf(tw, "資格\t%d\n", s.TotalCertifications)
	for _, d := range model.Difficulties {
		fmt.Fprintf(tw, "  %s\t%d\n", d, s.ProblemsByDifficulty[string(d)])
	}
	tw.Flush()

	fmt.Fprintln(w, "\n最近の問題:")
	if len(s.RecentProblems) == 0 {
		fmt.Fprintln(w, "  まだ問題が記録されていません。")
		return
	}
	renderProblems(w, s.RecentProblems)
}

func renderPageFooter(w io.Writer, page, totalPages, total int) {
	if totalPages <= 1 {
		fmt.Fprintf(w, "全%d件\n", total)
		return
	}
	fmt.Fprintf(w, "ページ %d/%d（全%d件）\n", page, totalPages, total)
}

func dateOrDash(d *model.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.String()
}

func stringOrDash(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	return *s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
