package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"codebreakers/domain"
	"codebreakers/migrations"
	"codebreakers/storage"
)

var repo *storage.PostgresRepo

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine3.22",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	if err := migrations.Migrate(connString); err != nil {
		panic(err)
	}

	repo, err = storage.NewPostgresRepo(ctx, connString)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	// Cleanup
	postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func TestPostgresRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateUser", func(t *testing.T) {
		id, err := repo.CreateUser(ctx, "oussama", "hashed_secret")
		assert.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("CreateUser_Duplicate", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, "oussama", "new_hash")
		assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
	})

	t.Run("GetUserByUsername", func(t *testing.T) {
		user, err := repo.GetUserByUsername(ctx, "oussama")
		assert.NoError(t, err)
		assert.Equal(t, "oussama", user.Username)
		assert.Equal(t, "hashed_secret", user.PasswordHash)
		assert.NotEmpty(t, user.Id)
	})

	t.Run("GetUserByUsername_NotFound", func(t *testing.T) {
		_, err := repo.GetUserByUsername(ctx, "ghost_user")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("GetUserById", func(t *testing.T) {
		id, err := repo.CreateUser(ctx, "tester2", "hash2")
		require.NoError(t, err)

		user, err := repo.GetUserById(ctx, id)
		assert.NoError(t, err)
		assert.Equal(t, "hash2", user.PasswordHash)
		assert.Equal(t, "tester2", user.Username)
	})
}

func TestRecordGameResults(t *testing.T) {
	ctx := context.Background()

	winnerId, err := repo.CreateUser(ctx, "winner_user", "hash")
	require.NoError(t, err)
	loserId, err := repo.CreateUser(ctx, "loser_user", "hash")
	require.NoError(t, err)

	results := []domain.PlayerResult{
		{UserId: winnerId, Username: "winner_user", Won: true, WasVirus: false, TasksCompleted: 3, DataCollected: 12},
		{UserId: loserId, Username: "loser_user", Won: false, WasVirus: true, TasksCompleted: 0, DataCollected: 5},
	}

	t.Run("first game inserts fresh rows", func(t *testing.T) {
		require.NoError(t, repo.RecordGameResults(ctx, "room-1", results))

		leaderboard, err := repo.Leaderboard(ctx, 100)
		require.NoError(t, err)

		byName := map[string]domain.PlayerStats{}
		for _, entry := range leaderboard {
			byName[entry.Username] = entry
		}

		winner := byName["winner_user"]
		assert.Equal(t, 1, winner.GamesPlayed)
		assert.Equal(t, 1, winner.Wins)
		assert.Equal(t, 0, winner.VirusWins)
		assert.Equal(t, 3, winner.TasksCompleted)
		assert.Equal(t, 12, winner.DataCollected)

		loser := byName["loser_user"]
		assert.Equal(t, 1, loser.GamesPlayed)
		assert.Equal(t, 0, loser.Wins)
		assert.Equal(t, 5, loser.DataCollected)
	})

	t.Run("second game accumulates", func(t *testing.T) {
		rematch := []domain.PlayerResult{
			{UserId: winnerId, Username: "winner_user", Won: true, WasVirus: true, TasksCompleted: 0, DataCollected: 2},
		}
		require.NoError(t, repo.RecordGameResults(ctx, "room-2", rematch))

		leaderboard, err := repo.Leaderboard(ctx, 100)
		require.NoError(t, err)

		for _, entry := range leaderboard {
			if entry.Username != "winner_user" {
				continue
			}
			assert.Equal(t, 2, entry.GamesPlayed)
			assert.Equal(t, 1, entry.Wins)
			assert.Equal(t, 1, entry.VirusWins)
			assert.Equal(t, 14, entry.DataCollected)
			return
		}
		t.Fatal("winner_user missing from leaderboard")
	})

	t.Run("unknown user is skipped not fatal", func(t *testing.T) {
		mixed := []domain.PlayerResult{
			{UserId: "00000000-0000-0000-0000-000000000000", Username: "ghost", Won: true},
			{UserId: loserId, Username: "loser_user", Won: true, WasVirus: true},
		}
		require.NoError(t, repo.RecordGameResults(ctx, "room-3", mixed))

		leaderboard, err := repo.Leaderboard(ctx, 100)
		require.NoError(t, err)
		for _, entry := range leaderboard {
			if entry.Username == "loser_user" {
				assert.Equal(t, 1, entry.VirusWins)
				return
			}
		}
		t.Fatal("loser_user missing from leaderboard")
	})
}

func TestLeaderboard_OrderAndLimit(t *testing.T) {
	ctx := context.Background()

	champId, err := repo.CreateUser(ctx, "champ_user", "hash")
	require.NoError(t, err)

	// three wins put the champ on top of everyone created by other tests
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordGameResults(ctx, "champ-room", []domain.PlayerResult{
			{UserId: champId, Username: "champ_user", Won: true},
		}))
	}

	leaderboard, err := repo.Leaderboard(ctx, 1)
	require.NoError(t, err)
	require.Len(t, leaderboard, 1)
	assert.Equal(t, "champ_user", leaderboard[0].Username)
	assert.Equal(t, 3, leaderboard[0].Wins)
}
