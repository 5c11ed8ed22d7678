package store

import (
	"context"
	"testing"
	"time"

	"github.com/demetori/deme/members"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseMemberStore runs the behaviour every members.Store backend must share.
func exerciseMemberStore(t *testing.T, st members.Store) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, members.NewMember("m1", "ayla", "Ayla", "AylaIGN", "SNS/GS", "900")))
		assert.ErrorIs(t, st.Create(ctx, members.NewMember("m1", "ayla", "Ayla", "Other", "BOW/DAGGER", "900")), members.ErrExists)

		got, err := st.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, "AylaIGN", got.InGameName)
		assert.Equal(t, "SNS/GS", got.Weapons)
		assert.Equal(t, members.DefaultGroup, got.Group)
		assert.Equal(t, "900", got.GuildRoleID)
		require.Len(t, got.Wishlist, members.WishlistSlots)
		assert.True(t, got.Wishlist[0].UpdatedAt.IsZero())

		_, err = st.Get(ctx, "missing")
		assert.ErrorIs(t, err, members.ErrNotFound)
	})

	t.Run("wishlist cooldown", func(t *testing.T) {
		require.NoError(t, st.SetWishlistSlot(ctx, "m1", 2, "Phantom Wolf Mask", now))
		assert.ErrorIs(t, st.SetWishlistSlot(ctx, "m1", 2, "Belt of Bloodlust", now.Add(23*time.Hour)), members.ErrCooldown)
		require.NoError(t, st.SetWishlistSlot(ctx, "m1", 3, "Belt of Bloodlust", now.Add(time.Hour)), "slots cool down independently")
		require.NoError(t, st.SetWishlistSlot(ctx, "m1", 2, "Forsaken Embrace", now.Add(members.WishlistCooldown)))

		assert.ErrorIs(t, st.SetWishlistSlot(ctx, "m1", 0, "x", now), members.ErrInvalidSlot)
		assert.ErrorIs(t, st.SetWishlistSlot(ctx, "missing", 1, "x", now), members.ErrNotFound)

		got, err := st.Get(ctx, "m1")
		require.NoError(t, err)
		slot := got.Slot(2)
		assert.Equal(t, "Forsaken Embrace", slot.Item)
		assert.True(t, slot.UpdatedAt.Equal(now.Add(members.WishlistCooldown)))
		assert.Equal(t, "Belt of Bloodlust", got.Slot(3).Item)
	})

	t.Run("planner upserts", func(t *testing.T) {
		link := "https://questlog.gg/throne-and-liberty/en/character-builder/ayla"
		require.NoError(t, st.SetPlanner(ctx, "m1", link, now))
		require.NoError(t, st.SetPlanner(ctx, "m2", link+"-alt", now))

		got, err := st.Get(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, link, got.Gear.PlannerLink)
		assert.Equal(t, "AylaIGN", got.InGameName, "planner update keeps the profile")

		fresh, err := st.Get(ctx, "m2")
		require.NoError(t, err)
		assert.Equal(t, link+"-alt", fresh.Gear.PlannerLink)
		assert.Len(t, fresh.Wishlist, members.WishlistSlots)
		require.NoError(t, st.SetWishlistSlot(ctx, "m2", 1, "Phantom Wolf Mask", now))
	})

	t.Run("list and delete", func(t *testing.T) {
		require.NoError(t, st.Create(ctx, members.NewMember("m3", "bram", "Bram", "Bram", "BOW/DAGGER", "901")))

		list, err := st.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		ids := make([]string, 0, len(list))
		for _, m := range list {
			ids = append(ids, m.ID)
		}
		assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, ids)

		require.NoError(t, st.Delete(ctx, "m3"))
		assert.ErrorIs(t, st.Delete(ctx, "m3"), members.ErrNotFound)
		_, err = st.Get(ctx, "m3")
		assert.ErrorIs(t, err, members.ErrNotFound)
	})
}
