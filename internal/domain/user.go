package domain

import "time"

// User represents a registered account in the user directory.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of the wins leaderboard.
type LeaderboardEntry struct {
	Rank     int64  `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Wins     int64  `json:"wins"`
}
