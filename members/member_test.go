package members

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMember(t *testing.T) {
	m := NewMember("1", "ayla", "Ayla", "AylaIGN", "SNS/GS", "900")

	assert.Equal(t, DefaultGroup, m.Group)
	require.Len(t, m.Wishlist, WishlistSlots)
	for i, s := range m.Wishlist {
		assert.Equal(t, i+1, s.Slot)
		assert.Empty(t, s.Item)
		assert.False(t, s.OnCooldown(time.Now()))
	}
	assert.Equal(t, "AylaIGN", m.Name())
}

func TestSlotCooldown(t *testing.T) {
	changed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s := WishlistSlot{Slot: 2, Item: "Phantom Wolf Mask", UpdatedAt: changed}

	assert.True(t, s.OnCooldown(changed.Add(23*time.Hour)))
	assert.False(t, s.OnCooldown(changed.Add(WishlistCooldown)))
	assert.Equal(t, changed.Add(24*time.Hour), s.CooldownEnd())
}

func TestWeaponRoleNames(t *testing.T) {
	assert.Equal(t, []string{"SNS/GS", "GS/SNS"}, WeaponRoleNames("sns", "GS"))
	assert.Equal(t, []string{"BOW/BOW"}, WeaponRoleNames("bow", "bow"))
}

func TestGroupByWeapons(t *testing.T) {
	list := []*Member{
		{InGameName: "zed", Weapons: "SNS/GS"},
		{InGameName: "Bram", Weapons: "BOW/DAGGER"},
		{InGameName: "ayla", Weapons: "SNS/GS"},
		{Username: "nobody"},
	}

	groups := GroupByWeapons(list)
	require.Len(t, groups, 3)
	assert.Equal(t, "BOW/DAGGER", groups[0].Weapons)
	assert.Equal(t, "SNS/GS", groups[1].Weapons)
	assert.Equal(t, "ayla", groups[1].Members[0].Name())
	assert.Equal(t, "zed", groups[1].Members[1].Name())
	assert.Equal(t, "Unknown", groups[2].Weapons)
}

func TestValidPlannerLink(t *testing.T) {
	assert.True(t, ValidPlannerLink("https://questlog.gg/throne-and-liberty/en/character-builder/my-build"))
	assert.True(t, ValidPlannerLink("https://www.questlog.gg/throne-and-liberty/en/character-builder/abc-1?build-id=42"))
	assert.False(t, ValidPlannerLink("http://questlog.gg/throne-and-liberty/en/character-builder/abc"))
	assert.False(t, ValidPlannerLink("https://questlog.gg/throne-and-liberty/en/database/abc"))
}

func TestWishlistItems(t *testing.T) {
	item, ok := LookupWishlistItem("  phantom wolf mask ")
	assert.True(t, ok)
	assert.Equal(t, "Phantom Wolf Mask", item)

	_, ok = LookupWishlistItem("Sword of Nothing")
	assert.False(t, ok)

	assert.Equal(t, []string{"Phantom Wolf Greaves", "Phantom Wolf Mask"}, MatchWishlistItems("wolf"))
	assert.Len(t, MatchWishlistItems(""), 25)
}
