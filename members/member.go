// Package members keeps the guild roster: who was admitted, which weapon
// pair they play, their gear planner link and their loot wishlist.
package members

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// WishlistSlots is the number of items a member can wish for.
	WishlistSlots = 5
	// WishlistCooldown locks a slot after it changes.
	WishlistCooldown = 24 * time.Hour
	// DefaultGroup is assigned to new members until an officer groups them.
	DefaultGroup = "Ungrouped"
)

var (
	ErrNotFound    = errors.New("member not found")
	ErrExists      = errors.New("member already registered")
	ErrCooldown    = errors.New("wishlist slot is on cooldown")
	ErrInvalidSlot = errors.New("wishlist slot out of range")
)

type Gear struct {
	PlannerLink string    `bson:"plannerLink" json:"plannerLink"`
	UpdatedAt   time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

type WishlistSlot struct {
	Slot      int       `bson:"slot" json:"slot"`
	Item      string    `bson:"item" json:"item"`
	UpdatedAt time.Time `bson:"slotLastUpdated" json:"slotLastUpdated"`
}

// CooldownEnd is the zero time for a slot that was never changed.
func (s WishlistSlot) CooldownEnd() time.Time {
	if s.UpdatedAt.IsZero() {
		return time.Time{}
	}
	return s.UpdatedAt.Add(WishlistCooldown)
}

func (s WishlistSlot) OnCooldown(now time.Time) bool {
	return now.Before(s.CooldownEnd())
}

type Member struct {
	ID          string         `bson:"memberId" json:"memberId"`
	Username    string         `bson:"discordUsername" json:"discordUsername"`
	DisplayName string         `bson:"discordDisplayName" json:"discordDisplayName"`
	InGameName  string         `bson:"inGameName" json:"inGameName"`
	Weapons     string         `bson:"weapons" json:"weapons"`
	Gear        Gear           `bson:"gear" json:"gear"`
	Wishlist    []WishlistSlot `bson:"wishlist" json:"wishlist"`
	Group       string         `bson:"group" json:"group"`
	GuildRoleID string         `bson:"guildRoleId" json:"guildRoleId"`
}

// NewMember builds a roster entry with an empty wishlist.
func NewMember(id, username, displayName, inGameName, weapons, guildRoleID string) *Member {
	return &Member{
		ID:          id,
		Username:    username,
		DisplayName: displayName,
		InGameName:  inGameName,
		Weapons:     weapons,
		Wishlist:    EmptyWishlist(),
		Group:       DefaultGroup,
		GuildRoleID: guildRoleID,
	}
}

func EmptyWishlist() []WishlistSlot {
	out := make([]WishlistSlot, WishlistSlots)
	for i := range out {
		out[i].Slot = i + 1
	}
	return out
}

// Slot returns the wishlist entry numbered n, or an empty one.
func (m *Member) Slot(n int) WishlistSlot {
	for _, s := range m.Wishlist {
		if s.Slot == n {
			return s
		}
	}
	return WishlistSlot{Slot: n}
}

// Name prefers the in-game name.
func (m *Member) Name() string {
	switch {
	case m.InGameName != "":
		return m.InGameName
	case m.DisplayName != "":
		return m.DisplayName
	default:
		return m.Username
	}
}

func ValidSlot(n int) bool {
	return n >= 1 && n <= WishlistSlots
}

// Store persists the roster. SetWishlistSlot must check the cooldown and
// write the slot atomically, returning ErrCooldown when the slot changed
// within WishlistCooldown of now.
type Store interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, id string) (*Member, error)
	List(ctx context.Context) ([]*Member, error)
	Delete(ctx context.Context, id string) error
	SetPlanner(ctx context.Context, id, link string, now time.Time) error
	SetWishlistSlot(ctx context.Context, id string, slot int, item string, now time.Time) error
}

// --- Weapons ---

var Weapons = []string{"SNS", "GS", "BOW", "STAFF", "WAND", "DAGGER", "XBOW"}

// WeaponRoleNames lists both spellings a weapon pair role may use, e.g. SNS/GS and GS/SNS.
func WeaponRoleNames(first, second string) []string {
	a := strings.ToUpper(first) + "/" + strings.ToUpper(second)
	b := strings.ToUpper(second) + "/" + strings.ToUpper(first)
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

type WeaponGroup struct {
	Weapons string
	Members []*Member
}

// GroupByWeapons buckets the roster by weapon pair. Groups and the members
// inside them are sorted by name, case-insensitively.
func GroupByWeapons(list []*Member) []WeaponGroup {
	index := make(map[string]int)
	var groups []WeaponGroup
	for _, m := range list {
		key := m.Weapons
		if key == "" {
			key = "Unknown"
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, WeaponGroup{Weapons: key})
		}
		groups[i].Members = append(groups[i].Members, m)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Weapons) < strings.ToLower(groups[j].Weapons)
	})
	for _, g := range groups {
		sort.SliceStable(g.Members, func(i, j int) bool {
			return strings.ToLower(g.Members[i].Name()) < strings.ToLower(g.Members[j].Name())
		})
	}
	return groups
}

// --- Planner ---

var plannerLinkRe = regexp.MustCompile(`^https://(www\.)?questlog\.gg/throne-and-liberty/en/character-builder/[a-zA-Z0-9-]+(\?build-id=\d+)?$`)

// ValidPlannerLink accepts only questlog.gg character builder pages.
func ValidPlannerLink(link string) bool {
	return plannerLinkRe.MatchString(link)
}

// --- Wishlist items ---

var WishlistItems = []string{
	"Adentus's Gargantuan Greatsword",
	"Aridus's Gnarled Voidstaff",
	"Ascendend Guardian Pants",
	"Band of Universal Power",
	"Belt of Bloodlust",
	"Blessed Templar Cloak",
	"Chernobog's Blade of Beheading",
	"Collar of Decimation",
	"Ebon Roar Gauntlets",
	"Excavator's Mysterious Scepter",
	"Forsaken Embrace",
	"Gauntlets of the Field General",
	"Helm of the Field General",
	"Junobote's Juggernaut Warblade",
	"Kowazan's Twilight Daggers",
	"Nirma's Sword of Echos",
	"Phantom Wolf Greaves",
	"Phantom Wolf Mask",
	"Shadow Harvester Boots",
	"Shadow Harvester Mask",
	"Shadow Harvester Trousers",
	"Shock Commander Greaves",
	"Shock Commander Sabatons",
	"Shock Commander Visor",
	"Swirling Essence Robe",
	"Talus's Crystalline Staff",
	"Wrapped Coin Necklace",
}

// LookupWishlistItem returns the canonical spelling of item.
func LookupWishlistItem(item string) (string, bool) {
	item = strings.TrimSpace(item)
	for _, known := range WishlistItems {
		if strings.EqualFold(known, item) {
			return known, true
		}
	}
	return "", false
}

// MatchWishlistItems returns up to 25 items containing query, for autocomplete.
func MatchWishlistItems(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []string
	for _, item := range WishlistItems {
		if query == "" || strings.Contains(strings.ToLower(item), query) {
			out = append(out, item)
			if len(out) == 25 {
				break
			}
		}
	}
	return out
}
