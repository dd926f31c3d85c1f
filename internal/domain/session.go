package domain

import "time"

// GameStatus represents the lifecycle state of a session. Status only moves
// forward: WAITING_FOR_PLAYERS -> IN_PROGRESS -> FINISHED.
type GameStatus string

const (
	StatusWaitingForPlayers GameStatus = "WAITING_FOR_PLAYERS"
	StatusInProgress        GameStatus = "IN_PROGRESS"
	StatusFinished          GameStatus = "FINISHED"
)

// Player is a user's seat in one session. JoinOrder is assigned as the count
// of players present at join time; the player with JoinOrder 0 is the creator.
type Player struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	JoinOrder int    `json:"join_order"`
	Score     int    `json:"score"`
	IsBlocked bool   `json:"is_blocked"`
}

// Turn is one entry in a session's append-only history. Card is nil for a
// blocked-skip turn; TargetPlayerID is set only for STEAL turns.
type Turn struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	PlayerID       string    `json:"player_id"`
	Card           *Card     `json:"card,omitempty"`
	TargetPlayerID string    `json:"target_player_id,omitempty"`
	PointsChange   int       `json:"points_change"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session is the aggregate root of one playthrough: its players in join
// order, its deck, its turn history, and the rotation pointers.
type Session struct {
	ID                 string     `json:"id"`
	Status             GameStatus `json:"status"`
	Players            []Player   `json:"players"`
	Deck               Deck       `json:"deck"`
	Turns              []Turn     `json:"turns"`
	CurrentPlayerIndex int        `json:"current_player_index"`
	NextPlayerIndex    int        `json:"next_player_index"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// PlayerByUsername returns the seat of the given user, if any.
func (s *Session) PlayerByUsername(username string) *Player {
	for i := range s.Players {
		if s.Players[i].Username == username {
			return &s.Players[i]
		}
	}
	return nil
}

// PlayerByID returns the player with the given seat id, if any.
func (s *Session) PlayerByID(playerID string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return &s.Players[i]
		}
	}
	return nil
}

// HasPlayer reports whether the given user holds a seat in this session.
func (s *Session) HasPlayer(username string) bool {
	return s.PlayerByUsername(username) != nil
}

// CurrentPlayer returns the player whose turn it is. Only meaningful once
// the session has started.
func (s *Session) CurrentPlayer() *Player {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentPlayerIndex]
}

// NextPlayer returns the player next in rotation.
func (s *Session) NextPlayer() *Player {
	if s.NextPlayerIndex < 0 || s.NextPlayerIndex >= len(s.Players) {
		return nil
	}
	return &s.Players[s.NextPlayerIndex]
}

// AdvanceRotation moves the turn pointers forward modulo the player count.
// The modulus is fixed once a session has started, since players cannot
// join afterwards.
func (s *Session) AdvanceRotation() {
	s.CurrentPlayerIndex = s.NextPlayerIndex
	s.NextPlayerIndex = (s.NextPlayerIndex + 1) % len(s.Players)
}

// Clone returns an independent deep copy of the session, so callers can
// mutate the copy without the change becoming visible before a save.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Players = make([]Player, len(s.Players))
	copy(clone.Players, s.Players)
	clone.Deck = make(Deck, len(s.Deck))
	copy(clone.Deck, s.Deck)
	clone.Turns = make([]Turn, len(s.Turns))
	for i, turn := range s.Turns {
		if turn.Card != nil {
			card := *turn.Card
			turn.Card = &card
		}
		clone.Turns[i] = turn
	}
	return &clone
}
