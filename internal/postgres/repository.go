package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leaderboard-rewards/internal/config"
	"github.com/leaderboard-rewards/internal/domain"
)

// Repository provides PostgreSQL-based access to player records
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

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			country VARCHAR(64) NOT NULL DEFAULT '',
			money DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (money >= 0),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_money ON players(money DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_players_name ON players(LOWER(name))`,
	}

	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// CreatePlayer inserts a new player and returns the stored row
func (r *Repository) CreatePlayer(ctx context.Context, name, country string, money float64) (*domain.Player, error) {
	query := `
		INSERT INTO players (name, country, money, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, name, country, money, created_at, updated_at
	`
	var player domain.Player
	err := r.pool.QueryRow(ctx, query, name, country, money, time.Now()).Scan(
		&player.ID,
		&player.Name,
		&player.Country,
		&player.Money,
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating player: %w", err)
	}
	return &player, nil
}

// GetPlayer retrieves a player by id
func (r *Repository) GetPlayer(ctx context.Context, playerID int64) (*domain.Player, error) {
	query := `
		SELECT id, name, country, money, created_at, updated_at
		FROM players
		WHERE id = $1
	`
	var player domain.Player
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&player.ID,
		&player.Name,
		&player.Country,
		&player.Money,
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return &player, nil
}

// ListPlayers retrieves all players
func (r *Repository) ListPlayers(ctx context.Context) ([]domain.Player, error) {
	query := `
		SELECT id, name, country, money, created_at, updated_at
		FROM players
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var player domain.Player
		err := rows.Scan(
			&player.ID,
			&player.Name,
			&player.Country,
			&player.Money,
			&player.CreatedAt,
			&player.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, player)
	}
	return players, nil
}

// ListRanked returns every player's (id, money) pair ordered by money
// descending, the projection the warm-up bulk load needs
func (r *Repository) ListRanked(ctx context.Context) ([]domain.IndexEntry, error) {
	query := `SELECT id, money FROM players ORDER BY money DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing ranked players: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var entry domain.IndexEntry
		if err := rows.Scan(&entry.PlayerID, &entry.Score); err != nil {
			return nil, fmt.Errorf("scanning ranked player: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// SearchByName returns suggestion projections for players whose name
// contains the fragment, case-insensitively
func (r *Repository) SearchByName(ctx context.Context, fragment string, limit int) ([]domain.PlayerOption, error) {
	query := `
		SELECT id, name, country
		FROM players
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, fragment, limit)
	if err != nil {
		return nil, fmt.Errorf("searching players: %w", err)
	}
	defer rows.Close()

	var options []domain.PlayerOption
	for rows.Next() {
		var option domain.PlayerOption
		if err := rows.Scan(&option.ID, &option.Name, &option.Country); err != nil {
			return nil, fmt.Errorf("scanning player option: %w", err)
		}
		options = append(options, option)
	}
	return options, nil
}

// ListByIDs bulk-fetches display attributes for the given players
func (r *Repository) ListByIDs(ctx context.Context, playerIDs []int64) ([]domain.Player, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, country, money, created_at, updated_at
		FROM players
		WHERE id = ANY($1)
	`
	rows, err := r.pool.Query(ctx, query, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("listing players by ids: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		var player domain.Player
		err := rows.Scan(
			&player.ID,
			&player.Name,
			&player.Country,
			&player.Money,
			&player.CreatedAt,
			&player.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, player)
	}
	return players, nil
}

// IncrementMoney adds delta to a player's balance and returns the
// updated row
func (r *Repository) IncrementMoney(ctx context.Context, playerID int64, delta float64) (*domain.Player, error) {
	query := `
		UPDATE players
		SET money = money + $2, updated_at = $3
		WHERE id = $1
		RETURNING id, name, country, money, created_at, updated_at
	`
	var player domain.Player
	err := r.pool.QueryRow(ctx, query, playerID, delta, time.Now()).Scan(
		&player.ID,
		&player.Name,
		&player.Country,
		&player.Money,
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("incrementing player money: %w", err)
	}
	return &player, nil
}

// ApplyRewards settles a distribution epoch in one transaction: each
// winner's money is set to its payout amount and every other player's
// money is set to zero. Concurrent readers see either the previous
// epoch or the fully settled one, never a partial state.
func (r *Repository) ApplyRewards(ctx context.Context, payouts []domain.Payout) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning reward transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	winnerIDs := make([]int64, 0, len(payouts))

	for _, payout := range payouts {
		_, err := tx.Exec(ctx,
			`UPDATE players SET money = $2, updated_at = $3 WHERE id = $1`,
			payout.PlayerID, payout.Amount, now,
		)
		if err != nil {
			return fmt.Errorf("setting reward for player %d: %w", payout.PlayerID, err)
		}
		winnerIDs = append(winnerIDs, payout.PlayerID)
	}

	if len(winnerIDs) > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE players SET money = 0, updated_at = $2 WHERE NOT (id = ANY($1))`,
			winnerIDs, now,
		)
	} else {
		_, err = tx.Exec(ctx, `UPDATE players SET money = 0, updated_at = $1`, now)
	}
	if err != nil {
		return fmt.Errorf("zeroing non-winners: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reward transaction: %w", err)
	}
	return nil
}
