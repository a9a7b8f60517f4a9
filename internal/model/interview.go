package model

// InterviewQuestion は面接で聞かれた質問と回答を表す。answerはリッチテキスト（HTML）。
type InterviewQuestion struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Company   string    `json:"company"`
	AskedDate Date      `json:"asked_date"`
	CreatedAt Timestamp `json:"created_at"`
}

// InterviewQuestionCreate は面接質問の新規作成リクエスト。
type InterviewQuestionCreate struct {
	Question  string `json:"question" validate:"required"`
	Answer    string `json:"answer" validate:"richtext"`
	Company   string `json:"company" validate:"required"`
	AskedDate Date   `json:"asked_date" validate:"required"`
}

// InterviewFilter は面接質問一覧の絞り込み条件。
// サーバー側はページネーションを持たない。
type InterviewFilter struct {
	Company  string
	DateFrom Date
	DateTo   Date
}
