package entity

// ReviewerData identifies the back-office operator behind a manual-review
// token.
type ReviewerData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
