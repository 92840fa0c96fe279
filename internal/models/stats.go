package models

// SiteStats backs the admin dashboard.
type SiteStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalPosts    int64 `json:"totalPosts"`
	TotalComments int64 `json:"totalComments"`
}

// MemberCounts backs the public landing page counters.
type MemberCounts struct {
	TotalUsers  int64 `json:"totalUsers"`
	BronzeUsers int64 `json:"bronzeUsers"`
	GoldenUsers int64 `json:"goldenUsers"`
	TotalPosts  int64 `json:"totalPosts"`
}
