package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
)

// Repository provides PostgreSQL-based persistence for users and session
// aggregates. Sessions are written whole inside one transaction, so a save
// either lands completely or not at all.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(50) NOT NULL UNIQUE,
			name VARCHAR(50) NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id VARCHAR(36) PRIMARY KEY,
			status VARCHAR(20) NOT NULL,
			current_player_index INT NOT NULL DEFAULT 0,
			next_player_index INT NOT NULL DEFAULT 0,
			leaderboard_synced BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_players (
			id VARCHAR(36) PRIMARY KEY,
			session_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			username VARCHAR(50) NOT NULL,
			name VARCHAR(50) NOT NULL,
			join_order INT NOT NULL,
			score INT NOT NULL DEFAULT 0,
			is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE(session_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS session_cards (
			id VARCHAR(36) PRIMARY KEY,
			session_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
			position INT NOT NULL,
			name VARCHAR(50) NOT NULL,
			card_type VARCHAR(10) NOT NULL,
			value INT NOT NULL,
			action_type VARCHAR(20),
			is_used BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE(session_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			seq BIGSERIAL PRIMARY KEY,
			id VARCHAR(36) NOT NULL UNIQUE,
			session_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
			player_id VARCHAR(36) NOT NULL,
			card_id VARCHAR(36),
			card_name VARCHAR(50),
			card_type VARCHAR(10),
			card_value INT,
			card_action_type VARCHAR(20),
			target_player_id VARCHAR(36),
			points_change INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_players_session ON session_players(session_id, join_order)`,
		`CREATE INDEX IF NOT EXISTS idx_session_cards_session ON session_cards(session_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_game_sessions_finished ON game_sessions(status, leaderboard_synced)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateUser inserts a new account.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Username, user.Name, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// UserByUsername resolves a username to its account.
func (r *Repository) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, name, password_hash, created_at
		FROM users
		WHERE username = $1
	`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Name, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// UserByID looks up an account by id.
func (r *Repository) UserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, username, name, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Name, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// LoadSession reads a whole session aggregate: the session row, its players
// in join order, its deck in draw order, and its turn history.
func (r *Repository) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := r.pool.QueryRow(ctx, `
		SELECT id, status, current_player_index, next_player_index, created_at, updated_at
		FROM game_sessions
		WHERE id = $1
	`, id).Scan(
		&session.ID, &session.Status,
		&session.CurrentPlayerIndex, &session.NextPlayerIndex,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, username, name, join_order, score, is_blocked
		FROM session_players
		WHERE session_id = $1
		ORDER BY join_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Player
		if err := rows.Scan(&p.ID, &p.UserID, &p.Username, &p.Name, &p.JoinOrder, &p.Score, &p.IsBlocked); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		session.Players = append(session.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading players: %w", err)
	}

	cardRows, err := r.pool.Query(ctx, `
		SELECT id, name, card_type, value, action_type, is_used
		FROM session_cards
		WHERE session_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying deck: %w", err)
	}
	defer cardRows.Close()
	for cardRows.Next() {
		var c domain.Card
		var actionType *string
		if err := cardRows.Scan(&c.ID, &c.Name, &c.Type, &c.Value, &actionType, &c.IsUsed); err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		if actionType != nil {
			c.ActionType = domain.ActionType(*actionType)
		}
		session.Deck = append(session.Deck, c)
	}
	if err := cardRows.Err(); err != nil {
		return nil, fmt.Errorf("reading deck: %w", err)
	}

	turnRows, err := r.pool.Query(ctx, `
		SELECT id, player_id, card_id, card_name, card_type, card_value, card_action_type,
		       target_player_id, points_change, created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer turnRows.Close()
	for turnRows.Next() {
		var t domain.Turn
		var cardID, cardName, cardType, cardAction, targetID *string
		var cardValue *int
		if err := turnRows.Scan(&t.ID, &t.PlayerID, &cardID, &cardName, &cardType, &cardValue,
			&cardAction, &targetID, &t.PointsChange, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.SessionID = session.ID
		if cardID != nil {
			card := domain.Card{
				ID:     *cardID,
				IsUsed: true,
			}
			if cardName != nil {
				card.Name = *cardName
			}
			if cardType != nil {
				card.Type = domain.CardType(*cardType)
			}
			if cardValue != nil {
				card.Value = *cardValue
			}
			if cardAction != nil {
				card.ActionType = domain.ActionType(*cardAction)
			}
			t.Card = &card
		}
		if targetID != nil {
			t.TargetPlayerID = *targetID
		}
		session.Turns = append(session.Turns, t)
	}
	if err := turnRows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	return &session, nil
}

// SaveSession writes the whole aggregate in one transaction. Players and
// cards are upserted, turn history is append-only (existing rows are left
// untouched).
func (r *Repository) SaveSession(ctx context.Context, session *domain.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO game_sessions (id, status, current_player_index, next_player_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_player_index = EXCLUDED.current_player_index,
			next_player_index = EXCLUDED.next_player_index,
			updated_at = EXCLUDED.updated_at
	`, session.ID, string(session.Status),
		session.CurrentPlayerIndex, session.NextPlayerIndex,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	for i := range session.Players {
		p := &session.Players[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO session_players (id, session_id, user_id, username, name, join_order, score, is_blocked)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				score = EXCLUDED.score,
				is_blocked = EXCLUDED.is_blocked
		`, p.ID, session.ID, p.UserID, p.Username, p.Name, p.JoinOrder, p.Score, p.IsBlocked)
		if err != nil {
			return fmt.Errorf("upserting player: %w", err)
		}
	}

	for i := range session.Deck {
		c := &session.Deck[i]
		var actionType *string
		if c.ActionType != "" {
			at := string(c.ActionType)
			actionType = &at
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO session_cards (id, session_id, position, name, card_type, value, action_type, is_used)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				is_used = EXCLUDED.is_used
		`, c.ID, session.ID, i, c.Name, string(c.Type), c.Value, actionType, c.IsUsed)
		if err != nil {
			return fmt.Errorf("upserting card: %w", err)
		}
	}

	for i := range session.Turns {
		t := &session.Turns[i]
		var cardID, cardName, cardType, cardAction, targetID *string
		var cardValue *int
		if t.Card != nil {
			cardID = &t.Card.ID
			cardName = &t.Card.Name
			ct := string(t.Card.Type)
			cardType = &ct
			cardValue = &t.Card.Value
			if t.Card.ActionType != "" {
				at := string(t.Card.ActionType)
				cardAction = &at
			}
		}
		if t.TargetPlayerID != "" {
			targetID = &t.TargetPlayerID
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO turns (id, session_id, player_id, card_id, card_name, card_type, card_value,
			                   card_action_type, target_player_id, points_change, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING
		`, t.ID, session.ID, t.PlayerID, cardID, cardName, cardType, cardValue,
			cardAction, targetID, t.PointsChange, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting turn: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// FinishedGame is one finished session pending leaderboard credit.
type FinishedGame struct {
	SessionID string
	UserID    string
	Username  string
}

// UnsyncedFinishedGames returns finished sessions whose winner has not been
// credited on the leaderboard yet. The winner is the player with the top
// score.
func (r *Repository) UnsyncedFinishedGames(ctx context.Context, limit int) ([]FinishedGame, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (gs.id) gs.id, sp.user_id, sp.username
		FROM game_sessions gs
		JOIN session_players sp ON sp.session_id = gs.id
		WHERE gs.status = $1 AND gs.leaderboard_synced = FALSE
		ORDER BY gs.id, sp.score DESC, sp.join_order
		LIMIT $2
	`, string(domain.StatusFinished), limit)
	if err != nil {
		return nil, fmt.Errorf("querying finished games: %w", err)
	}
	defer rows.Close()

	var games []FinishedGame
	for rows.Next() {
		var g FinishedGame
		if err := rows.Scan(&g.SessionID, &g.UserID, &g.Username); err != nil {
			return nil, fmt.Errorf("scanning finished game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// MarkLeaderboardSynced flags sessions as credited.
func (r *Repository) MarkLeaderboardSynced(ctx context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE game_sessions SET leaderboard_synced = TRUE WHERE id = ANY($1)
	`, sessionIDs)
	if err != nil {
		return fmt.Errorf("marking sessions synced: %w", err)
	}
	return nil
}
