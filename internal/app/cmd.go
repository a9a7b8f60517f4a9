package app

import (
	"fmt"
	"io"
)

// Command はCLIのサブコマンドを表す。
type Command string

const (
	CommandHelp           Command = "help"
	CommandLogin          Command = "login"
	CommandLogout         Command = "logout"
	CommandWhoami         Command = "whoami"
	CommandDashboard      Command = "dashboard"
	CommandProblems       Command = "problems"
	CommandProblem        Command = "problem"
	CommandLearnings      Command = "learnings"
	CommandInterviews     Command = "interviews"
	CommandCertifications Command = "certifications"
	CommandExperiences    Command = "experiences"
	CommandUpload         Command = "upload"
	CommandTheme          Command = "theme"
	CommandBrowse         Command = "browse"
)

var commands = map[string]Command{
	"help":           CommandHelp,
	"login":          CommandLogin,
	"logout":         CommandLogout,
	"whoami":         CommandWhoami,
	"dashboard":      CommandDashboard,
	"problems":       CommandProblems,
	"problem":        CommandProblem,
	"learnings":      CommandLearnings,
	"interviews":     CommandInterviews,
	"certifications": CommandCertifications,
	"experiences":    CommandExperiences,
	"upload":         CommandUpload,
	"theme":          CommandTheme,
	"browse":         CommandBrowse,
}

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空の場合はCommandHelpを返す。サポート外のコマンドはエラー。
func ParseCommand(args []string) (Command, []string, error) {
	if len(args) == 0 {
		return CommandHelp, nil, nil
	}
	switch args[0] {
	case "-h", "--help":
		return CommandHelp, args[1:], nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return "", nil, fmt.Errorf("unknown command: %q (careerlog help で一覧を表示)", args[0])
	}
	return cmd, args[1:], nil
}

const usage = `careerlog - キャリア記録のコマンドラインクライアント

使い方:
  careerlog <command> [flags]

コマンド:
  login [--code CODE]                  Googleアカウントでログイン
  logout                               ログアウト
  whoami                               ログイン中のユーザーを表示
  dashboard                            統計と最近の問題を表示
  problems [--page --search --difficulty --tag]
                                       問題の一覧
  problem show|new|edit|delete         問題の表示・作成・編集・削除
  learnings list|add|delete            学習記録
  interviews list|add|delete           面接質問
  certifications list|add              資格
  experiences list|add                 職務経歴
  upload <file>                        画像をアップロードしURLを表示
  theme [toggle|light|dark]            表示テーマ
  browse <resource>                    一覧を対話的に閲覧
                                       (problems, learnings, interviews, certifications, experiences)
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}
