package handler

import (
	"time"

	"github.com/kokodi-server/internal/domain"
)

// PlayerResponse is the public view of a seat.
type PlayerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	IsBlocked bool   `json:"is_blocked"`
}

// CardResponse is the public view of a played card.
type CardResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Value      int    `json:"value"`
	Type       string `json:"type"`
	ActionType string `json:"action_type,omitempty"`
}

// GameResponse is the public view of a session. The deck itself is never
// exposed, only the count of cards still to draw.
type GameResponse struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	Players        []PlayerResponse `json:"players"`
	CurrentPlayer  *PlayerResponse  `json:"current_player,omitempty"`
	NextPlayer     *PlayerResponse  `json:"next_player,omitempty"`
	RemainingCards int              `json:"remaining_cards"`
	Turns          int              `json:"turns"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TurnResponse is the public view of one resolved turn.
type TurnResponse struct {
	ID           string          `json:"id"`
	GameID       string          `json:"game_id"`
	Player       *PlayerResponse `json:"player,omitempty"`
	Card         *CardResponse   `json:"card,omitempty"`
	TargetPlayer *PlayerResponse `json:"target_player,omitempty"`
	PointsChange int             `json:"points_change"`
	CreatedAt    time.Time       `json:"created_at"`
}

func toPlayerResponse(p *domain.Player) *PlayerResponse {
	if p == nil {
		return nil
	}
	return &PlayerResponse{
		ID:        p.ID,
		Name:      p.Name,
		Score:     p.Score,
		IsBlocked: p.IsBlocked,
	}
}

func toCardResponse(c *domain.Card) *CardResponse {
	if c == nil {
		return nil
	}
	return &CardResponse{
		ID:         c.ID,
		Name:       c.Name,
		Value:      c.Value,
		Type:       string(c.Type),
		ActionType: string(c.ActionType),
	}
}

func toGameResponse(s *domain.Session) *GameResponse {
	resp := &GameResponse{
		ID:             s.ID,
		Status:         string(s.Status),
		Players:        make([]PlayerResponse, 0, len(s.Players)),
		RemainingCards: s.Deck.Remaining(),
		Turns:          len(s.Turns),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	for i := range s.Players {
		resp.Players = append(resp.Players, *toPlayerResponse(&s.Players[i]))
	}
	if s.Status != domain.StatusWaitingForPlayers {
		resp.CurrentPlayer = toPlayerResponse(s.CurrentPlayer())
		resp.NextPlayer = toPlayerResponse(s.NextPlayer())
	}
	return resp
}

// toTurnResponse shapes a turn, resolving player references against the
// session the turn belongs to.
func toTurnResponse(t *domain.Turn, s *domain.Session) *TurnResponse {
	resp := &TurnResponse{
		ID:           t.ID,
		GameID:       t.SessionID,
		Player:       toPlayerResponse(s.PlayerByID(t.PlayerID)),
		Card:         toCardResponse(t.Card),
		PointsChange: t.PointsChange,
		CreatedAt:    t.CreatedAt,
	}
	if t.TargetPlayerID != "" {
		resp.TargetPlayer = toPlayerResponse(s.PlayerByID(t.TargetPlayerID))
	}
	return resp
}
