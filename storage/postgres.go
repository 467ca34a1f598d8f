package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codebreakers/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (pgur *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	user := domain.User{Username: username}

	row := pgur.pool.QueryRow(ctx, "SELECT id, password_hash FROM users WHERE username = $1", username)

	err := row.Scan(&user.Id, &user.PasswordHash)

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, domain.ErrUserNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.User{}, err
		default:
			return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return user, nil
}

func (pgur *PostgresRepo) GetUserById(ctx context.Context, id string) (domain.User, error) {
	user := domain.User{Id: id}

	row := pgur.pool.QueryRow(ctx, "SELECT username, password_hash FROM users WHERE id = $1", id)

	err := row.Scan(&user.Username, &user.PasswordHash)

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.User{}, domain.ErrUserNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.User{}, err
		default:
			return domain.User{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return user, nil
}

func (pgur *PostgresRepo) CreateUser(ctx context.Context, username string, passwordHash string) (string, error) {
	row := pgur.pool.QueryRow(ctx, "INSERT INTO users(username, password_hash) VALUES($1, $2) RETURNING id", username, passwordHash)

	var id string
	err := row.Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23505" is the PostgreSQL error code for unique_violation
			if pgErr.Code == "23505" {
				return "", domain.ErrDuplicateUsername
			}
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		return "", fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	return id, nil
}

// RecordGameResults folds one finished game into each participant's
// cumulative stats. Results of unknown user ids are skipped rather than
// failing the whole batch: a player whose account vanished mid-game must
// not lose everyone else their stats.
func (pgur *PostgresRepo) RecordGameResults(ctx context.Context, roomId string, results []domain.PlayerResult) error {
	for _, res := range results {
		won := 0
		virusWon := 0
		if res.Won {
			if res.WasVirus {
				virusWon = 1
			} else {
				won = 1
			}
		}

		_, err := pgur.pool.Exec(ctx, `
			INSERT INTO player_stats(user_id, games_played, wins, virus_wins, tasks_completed, data_collected)
			VALUES($1, 1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO UPDATE SET
				games_played    = player_stats.games_played + 1,
				wins            = player_stats.wins + EXCLUDED.wins,
				virus_wins      = player_stats.virus_wins + EXCLUDED.virus_wins,
				tasks_completed = player_stats.tasks_completed + EXCLUDED.tasks_completed,
				data_collected  = player_stats.data_collected + EXCLUDED.data_collected`,
			res.UserId, won, virusWon, res.TasksCompleted, res.DataCollected)

		if err != nil {
			var pgErr *pgconn.PgError
			// "23503" is the PostgreSQL error code for foreign_key_violation
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				slog.Warn("RecordGameResults: skipping result for unknown user",
					"room_id", roomId,
					"user_id", res.UserId,
				)
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	return nil
}

func (pgur *PostgresRepo) Leaderboard(ctx context.Context, limit int) ([]domain.PlayerStats, error) {
	rows, err := pgur.pool.Query(ctx, `
		SELECT u.username, s.games_played, s.wins, s.virus_wins, s.tasks_completed, s.data_collected
		FROM player_stats s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.wins + s.virus_wins DESC, s.games_played ASC
		LIMIT $1`, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	leaderboard := make([]domain.PlayerStats, 0, limit)
	for rows.Next() {
		var entry domain.PlayerStats
		if err := rows.Scan(&entry.Username, &entry.GamesPlayed, &entry.Wins, &entry.VirusWins, &entry.TasksCompleted, &entry.DataCollected); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		leaderboard = append(leaderboard, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}

	return leaderboard, nil
}
