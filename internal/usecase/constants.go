package usecase

const (
	// DefaultLeaderboardSize is used when no limit is given.
	DefaultLeaderboardSize = 10

	// dayLayout formats calendar days for daily caps and statistics.
	dayLayout = "2006-01-02"
)
