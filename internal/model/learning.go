package model

// Learning は学んだことの記録を表す。topicはリッチテキスト（HTML）。
type Learning struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Topic       string    `json:"topic"`
	LearnedDate Date      `json:"learned_date"`
	Tags        []string  `json:"tags"`
	CreatedAt   Timestamp `json:"created_at"`
}

// LearningCreate は学習記録の新規作成リクエスト。
type LearningCreate struct {
	Topic       string   `json:"topic" validate:"richtext"`
	LearnedDate Date     `json:"learned_date,omitzero"`
	Tags        []string `json:"tags,omitempty"`
}

// LearningFilter は学習記録一覧の検索条件。
type LearningFilter struct {
	Page   int
	Size   int
	Search string
	Tag    string
}
