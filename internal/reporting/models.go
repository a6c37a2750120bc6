package reporting

// ActivitySummary is the per-user dashboard snapshot.
//
// User isolation: every count is scoped to a single user_id.
type ActivitySummary struct {
	UserID string `json:"user_id"`

	// TotalConversations counts all stored turns for the user.
	TotalConversations int `json:"totalConversations"`

	// TotalCalls counts all call records for the user, any status.
	TotalCalls int `json:"totalCalls"`

	// RecentActivity counts turns created in the trailing 24 hours.
	RecentActivity int `json:"recentActivity"`
}
