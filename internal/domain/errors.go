package domain

import "errors"

// Domain errors, grouped by kind. The HTTP layer maps each kind to a status
// code; operations wrap these with context where a plain sentinel is not
// descriptive enough (for example whose turn it actually is).
var (
	// Not found
	ErrUserNotFound   = errors.New("user not found")
	ErrGameNotFound   = errors.New("game session not found")
	ErrTargetNotFound = errors.New("target player not found")

	// Invalid state
	ErrGameNotWaiting    = errors.New("game is not waiting for players")
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrNotEnoughPlayers  = errors.New("not enough players to start the game")

	// Forbidden
	ErrNotYourTurn = errors.New("not your turn")
	ErrNotCreator  = errors.New("only the game creator can start the game")
	ErrNotAPlayer  = errors.New("you are not a player in this game")

	// Capacity and membership conflicts
	ErrGameFull      = errors.New("game is full")
	ErrAlreadyJoined = errors.New("user already in game")
	ErrUsernameTaken = errors.New("username already exists")

	// Validation
	ErrTargetRequired = errors.New("target player is required for steal action")
	ErrSelfSteal      = errors.New("stealing from yourself is not allowed")
	ErrInvalidRequest = errors.New("invalid request")

	// Deck exhaustion (a normal end-of-deck condition, not a server fault)
	ErrDeckExhausted = errors.New("no cards left in deck")

	// Auth
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")

	ErrInternal = errors.New("internal server error")
)

// IsNotFound checks if an error is a not-found type error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrGameNotFound) ||
		errors.Is(err, ErrTargetNotFound)
}

// IsInvalidState checks if an error reports an operation attempted in the
// wrong session status
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrGameNotWaiting) ||
		errors.Is(err, ErrGameNotInProgress) ||
		errors.Is(err, ErrNotEnoughPlayers)
}

// IsForbidden checks if an error reports a caller acting out of turn or
// outside their session
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrNotCreator) ||
		errors.Is(err, ErrNotAPlayer)
}

// IsConflict checks if an error is a join-time capacity or membership
// violation
func IsConflict(err error) bool {
	return errors.Is(err, ErrGameFull) ||
		errors.Is(err, ErrAlreadyJoined) ||
		errors.Is(err, ErrUsernameTaken)
}

// IsValidation checks if an error is a request validation failure
func IsValidation(err error) bool {
	return errors.Is(err, ErrTargetRequired) ||
		errors.Is(err, ErrSelfSteal) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsExhausted checks if an error reports an empty deck
func IsExhausted(err error) bool {
	return errors.Is(err, ErrDeckExhausted)
}

// IsUnauthorized checks if an error is an authentication failure
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInvalidToken)
}
