package models

// AnalyticsSummary is the admin dashboard snapshot.
type AnalyticsSummary struct {
	TotalEmergencies    int64   `json:"totalEmergencies"`
	TotalVolunteers     int     `json:"totalVolunteers"`
	TotalLivesSaved     int     `json:"totalLivesSaved"`
	AverageResponseTime float64 `json:"averageResponseTime"`

	Funnel      ResponseFunnel `json:"funnel"`
	DailyTrend  []DailyCount   `json:"dailyTrend"`
	ByType      []TypeCount    `json:"byType"`
	PeakHours   [24]int        `json:"peakHours"`
	Heatmap     []HeatPoint    `json:"heatmap"`
	WindowDays  int            `json:"windowDays"`
	GeneratedAt string         `json:"generatedAt"`
}

// ResponseFunnel counts emergencies reaching each lifecycle milestone.
type ResponseFunnel struct {
	Triggered int64 `json:"triggered"`
	Accepted  int64 `json:"accepted"`
	Arrived   int64 `json:"arrived"`
	Resolved  int64 `json:"resolved"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type HeatPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Severity  string  `json:"severity"`
}
