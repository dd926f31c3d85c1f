package domain

import "time"

// Event types published to the game event stream.
const (
	EventGameCreated  = "game_created"
	EventPlayerJoined = "player_joined"
	EventGameStarted  = "game_started"
	EventTurnPlayed   = "turn_played"
	EventGameFinished = "game_finished"
)

// GameEvent is one record of the append-only game event stream. Events are
// emitted after an operation commits and are purely informational; losing
// one never fails the originating request.
type GameEvent struct {
	Type           string     `json:"type"`
	GameID         string     `json:"game_id"`
	UserID         string     `json:"user_id,omitempty"`
	PlayerID       string     `json:"player_id,omitempty"`
	TargetPlayerID string     `json:"target_player_id,omitempty"`
	WinnerID       string     `json:"winner_id,omitempty"`
	CardName       string     `json:"card_name,omitempty"`
	CardType       CardType   `json:"card_type,omitempty"`
	ActionType     ActionType `json:"action_type,omitempty"`
	PointsChange   int        `json:"points_change,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}
