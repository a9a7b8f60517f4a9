package model

// Difficulty は問題の難易度を表す。
type Difficulty string

const (
	// DifficultyEasy は難易度「Easy」。
	DifficultyEasy Difficulty = "Easy"
	// DifficultyMedium は難易度「Medium」。
	DifficultyMedium Difficulty = "Medium"
	// DifficultyHard は難易度「Hard」。
	DifficultyHard Difficulty = "Hard"
)

// Difficulties は有効な難易度の一覧（表示順）。
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid は難易度が定義済みの値かどうかを返す。
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Problem はSTAR形式で記録した問題解決の記録を表す。
// Situation/Task/Action/Resultはリッチテキスト（HTML）で保持される。
type Problem struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	CompanyContext *string    `json:"company_context"`
	Difficulty     Difficulty `json:"difficulty"`
	Situation      string     `json:"situation"`
	Task           string     `json:"task"`
	Action         string     `json:"action"`
	Result         string     `json:"result"`
	Tags           []string   `json:"tags"`
	SolvedAt       Date       `json:"solved_at"`
	CreatedAt      Timestamp  `json:"created_at"`
}

// ProblemCreate は問題の新規作成リクエスト。
// solved_atを省略した場合はサーバー側で当日が設定される。
type ProblemCreate struct {
	Title          string     `json:"title" validate:"required"`
	CompanyContext string     `json:"company_context,omitempty"`
	Difficulty     Difficulty `json:"difficulty" validate:"difficulty"`
	Situation      string     `json:"situation" validate:"richtext"`
	Task           string     `json:"task" validate:"richtext"`
	Action         string     `json:"action" validate:"richtext"`
	Result         string     `json:"result" validate:"richtext"`
	Tags           []string   `json:"tags,omitempty"`
	SolvedAt       Date       `json:"solved_at,omitzero"`
}

// ProblemUpdate は問題の部分更新リクエスト。
// nilのフィールドは送信されず、サーバー側の値が維持される。
// 値を指定したフィールドは作成時と同じ規則で検証する。
type ProblemUpdate struct {
	Title          *string     `json:"title,omitempty"`
	CompanyContext *string     `json:"company_context,omitempty"`
	Difficulty     *Difficulty `json:"difficulty,omitempty"`
	Situation      *string     `json:"situation,omitempty"`
	Task           *string     `json:"task,omitempty"`
	Action         *string     `json:"action,omitempty"`
	Result         *string     `json:"result,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	SolvedAt       *Date       `json:"solved_at,omitempty"`
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (u ProblemUpdate) IsEmpty() bool {
	return u.Title == nil && u.CompanyContext == nil && u.Difficulty == nil &&
		u.Situation == nil && u.Task == nil && u.Action == nil && u.Result == nil &&
		u.Tags == nil && u.SolvedAt == nil
}

// ProblemFilter は問題一覧の検索条件。
type ProblemFilter struct {
	Page       int
	Size       int
	Difficulty Difficulty
	Search     string
	Tag        string
}
