package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/arbiter/internal/game/combat"
	"github.com/cory-johannsen/arbiter/internal/game/stats"
	"github.com/cory-johannsen/arbiter/internal/storage/postgres"
	"github.com/cory-johannsen/arbiter/internal/testutil"
)

func newCombat(tenant string) *combat.Combat {
	return &combat.Combat{
		ID:         uuid.New().String(),
		Tenant:     tenant,
		Active:     true,
		LocationID: "loc-1",
		Round:      1,
		Participants: []*combat.Participant{
			{EntityID: "player1", Kind: stats.KindCharacter, Name: "player1", HP: 20, MaxHP: 20, Initiative: 12},
			{EntityID: "npc1", Kind: stats.KindNPC, Name: "npc1", HP: 10, MaxHP: 10, Initiative: 8},
		},
		TurnOrder: []string{"player1", "npc1"},
		Log:       []string{"Combat begins: player1 acts first."},
	}
}

func TestCombatRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	repo := postgres.NewCombatRepository(pc.RawPool)
	ctx := context.Background()

	t.Run("save and load round trip", func(t *testing.T) {
		cbt := newCombat("guild-a")
		require.NoError(t, repo.SaveCombat(ctx, "guild-a", cbt))

		loaded, err := repo.LoadActive(ctx, "guild-a")
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, cbt.ID, loaded[0].ID)
		assert.Equal(t, cbt.TurnOrder, loaded[0].TurnOrder)
		require.Len(t, loaded[0].Participants, 2)
		assert.Equal(t, 20, loaded[0].Participants[0].HP)

		require.NoError(t, repo.DeleteCombat(ctx, "guild-a", cbt.ID))
	})

	t.Run("upsert replaces state", func(t *testing.T) {
		cbt := newCombat("guild-a")
		require.NoError(t, repo.SaveCombat(ctx, "guild-a", cbt))

		cbt.Round = 3
		cbt.Participants[1].HP = 2
		require.NoError(t, repo.SaveCombat(ctx, "guild-a", cbt))

		loaded, err := repo.LoadActive(ctx, "guild-a")
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, 3, loaded[0].Round)
		assert.Equal(t, 2, loaded[0].Participants[1].HP)

		require.NoError(t, repo.DeleteCombat(ctx, "guild-a", cbt.ID))
	})

	t.Run("inactive combats are not loaded", func(t *testing.T) {
		cbt := newCombat("guild-a")
		cbt.Active = false
		require.NoError(t, repo.SaveCombat(ctx, "guild-a", cbt))

		loaded, err := repo.LoadActive(ctx, "guild-a")
		require.NoError(t, err)
		assert.Empty(t, loaded)

		require.NoError(t, repo.DeleteCombat(ctx, "guild-a", cbt.ID))
	})

	t.Run("tenants are isolated", func(t *testing.T) {
		cbtA := newCombat("guild-a")
		cbtB := newCombat("guild-b")
		require.NoError(t, repo.SaveCombat(ctx, "guild-a", cbtA))
		require.NoError(t, repo.SaveCombat(ctx, "guild-b", cbtB))

		loaded, err := repo.LoadActive(ctx, "guild-a")
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, cbtA.ID, loaded[0].ID)

		require.NoError(t, repo.DeleteCombat(ctx, "guild-a", cbtA.ID))
		require.NoError(t, repo.DeleteCombat(ctx, "guild-b", cbtB.ID))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		assert.NoError(t, repo.DeleteCombat(ctx, "guild-a", uuid.New().String()))
	})
}
