package model

// Certification は取得資格を表す。
type Certification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Issuer        string    `json:"issuer"`
	IssueDate     Date      `json:"issue_date"`
	ExpiryDate    *Date     `json:"expiry_date"`
	CredentialURL *string   `json:"credential_url"`
	CreatedAt     Timestamp `json:"created_at"`
}

// CertificationCreate は資格の新規登録リクエスト。
type CertificationCreate struct {
	Name          string `json:"name" validate:"required"`
	Issuer        string `json:"issuer" validate:"required"`
	IssueDate     Date   `json:"issue_date" validate:"required"`
	ExpiryDate    *Date  `json:"expiry_date,omitempty"`
	CredentialURL string `json:"credential_url,omitempty" validate:"omitempty,url"`
}

// Experience は職務経歴を表す。end_dateがnilの場合は在職中。
type Experience struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Company     string    `json:"company"`
	Role        string    `json:"role"`
	StartDate   Date      `json:"start_date"`
	EndDate     *Date     `json:"end_date"`
	Description *string   `json:"description"`
	CreatedAt   Timestamp `json:"created_at"`
}

// ExperienceCreate は職務経歴の新規登録リクエスト。
type ExperienceCreate struct {
	Company     string `json:"company" validate:"required"`
	Role        string `json:"role" validate:"required"`
	StartDate   Date   `json:"start_date" validate:"required"`
	EndDate     *Date  `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// DashboardStats はダッシュボードの集計値を表す。
// 全リソースの件数から算出されるため、いずれかの更新で無効化される。
type DashboardStats struct {
	TotalProblems        int            `json:"total_problems"`
	TotalExperiences     int            `json:"total_experiences"`
	TotalCertifications  int            `json:"total_certifications"`
	ProblemsByDifficulty map[string]int `json:"problems_by_difficulty"`
	RecentProblems       []Problem      `json:"recent_problems"`
}

// UploadResult は POST /uploads のレスポンス。
type UploadResult struct {
	URL string `json:"url"`
}
