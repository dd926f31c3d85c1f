package game

import (
	"context"
	"fmt"

	"github.com/kokodi-server/internal/domain"
)

// TurnRequest carries the optional parameters of a turn. TargetPlayerID is
// required only when the drawn card turns out to be a STEAL.
type TurnRequest struct {
	TargetPlayerID string `json:"target_player_id,omitempty"`
}

// MakeTurn resolves one turn for the caller: either a blocked skip, or a
// draw of the first unused card and its effect. The call is atomic; on any
// failure the stored aggregate is unchanged.
func (s *Service) MakeTurn(ctx context.Context, gameID, username string, req TurnRequest) (*domain.Turn, error) {
	unlock, err := s.locks.Lock(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("locking session: %w", err)
	}
	defer unlock()

	session, err := s.sessions.LoadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if session.Status != domain.StatusInProgress {
		return nil, domain.ErrGameNotInProgress
	}

	current := session.CurrentPlayer()
	if current == nil {
		return nil, fmt.Errorf("current player index %d out of range", session.CurrentPlayerIndex)
	}
	if current.Username != username {
		return nil, fmt.Errorf("%w: current player is %s", domain.ErrNotYourTurn, current.Name)
	}

	turn := domain.Turn{
		ID:        s.newID(),
		SessionID: session.ID,
		PlayerID:  current.ID,
		CreatedAt: s.now(),
	}

	if current.IsBlocked {
		// A block consumes exactly one turn; no card is drawn.
		current.IsBlocked = false
		return s.commitTurn(ctx, session, current, turn)
	}

	drawn, ok := session.Deck.NextUnused()
	if !ok {
		return nil, domain.ErrDeckExhausted
	}
	card := &session.Deck[drawn]

	switch card.Type {
	case domain.CardTypePoints:
		current.Score += card.Value
		turn.PointsChange = card.Value

	case domain.CardTypeAction:
		if err := s.resolveAction(session, current, card, req, &turn); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown card type %q", card.Type)
	}

	card.IsUsed = true
	played := *card
	turn.Card = &played

	return s.commitTurn(ctx, session, current, turn)
}

// resolveAction applies an action card effect. All validation happens before
// any score mutation so a rejected steal leaves the aggregate untouched.
func (s *Service) resolveAction(
	session *domain.Session,
	current *domain.Player,
	card *domain.Card,
	req TurnRequest,
	turn *domain.Turn,
) error {
	switch card.ActionType {
	case domain.ActionBlock:
		// The block lands on whoever is next in rotation at resolution
		// time, not a caller-chosen target.
		session.NextPlayer().IsBlocked = true

	case domain.ActionSteal:
		if req.TargetPlayerID == "" {
			return domain.ErrTargetRequired
		}
		target := session.PlayerByID(req.TargetPlayerID)
		if target == nil {
			return domain.ErrTargetNotFound
		}
		if target.ID == current.ID && !s.cfg.AllowSelfSteal {
			return domain.ErrSelfSteal
		}
		amount := card.Value
		if target.Score < amount {
			amount = target.Score
		}
		target.Score -= amount
		current.Score += amount
		turn.PointsChange = amount
		turn.TargetPlayerID = target.ID

	case domain.ActionDoubleDown:
		// The card's value field is catalog-only; the effect doubles the
		// score, capped at the winning threshold.
		newScore := current.Score * 2
		if newScore > s.cfg.WinningScore {
			newScore = s.cfg.WinningScore
		}
		turn.PointsChange = newScore - current.Score
		current.Score = newScore

	default:
		return fmt.Errorf("unknown action type %q", card.ActionType)
	}

	return nil
}

// commitTurn appends the turn, applies the finish check, advances rotation,
// and persists the aggregate.
func (s *Service) commitTurn(
	ctx context.Context,
	session *domain.Session,
	current *domain.Player,
	turn domain.Turn,
) (*domain.Turn, error) {
	session.Turns = append(session.Turns, turn)

	finished := current.Score >= s.cfg.WinningScore
	if finished {
		session.Status = domain.StatusFinished
	}
	// Rotation advances even on the finishing turn.
	session.AdvanceRotation()
	session.UpdatedAt = turn.CreatedAt

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	event := domain.GameEvent{
		Type:           domain.EventTurnPlayed,
		GameID:         session.ID,
		UserID:         current.UserID,
		PlayerID:       current.ID,
		TargetPlayerID: turn.TargetPlayerID,
		PointsChange:   turn.PointsChange,
		Timestamp:      turn.CreatedAt,
	}
	if turn.Card != nil {
		event.CardName = turn.Card.Name
		event.CardType = turn.Card.Type
		event.ActionType = turn.Card.ActionType
	}
	s.publish(event)

	if finished {
		s.logger.Info("game finished", "game_id", session.ID, "winner", current.Username, "score", current.Score)
		s.publish(domain.GameEvent{
			Type:      domain.EventGameFinished,
			GameID:    session.ID,
			UserID:    current.UserID,
			WinnerID:  current.UserID,
			Timestamp: turn.CreatedAt,
		})
	}

	last := &session.Turns[len(session.Turns)-1]
	return last, nil
}
