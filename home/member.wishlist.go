package home

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/demetori/deme/members"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

// handleMemberWishlist shows the caller's wishlist, or changes one slot when
// both slot and item are given. A changed slot stays locked for a day.
func handleMemberWishlist(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	slot, hasSlot := data.OptInt("slot")
	rawItem, hasItem := data.OptString("item")
	if hasSlot != hasItem {
		eventRespond(event, sys.ErrMemberWishlistArgs)
		return
	}

	_ = event.DeferCreateMessage(true)
	client := event.Client()
	reply := func(content string) {
		eventFollowUp(client, event.ApplicationID(), event.Token(), content)
	}

	ctx, cancel := eventContext()
	defer cancel()

	user := event.User()
	m, err := memberStore.Get(ctx, user.ID.String())
	if errors.Is(err, members.ErrNotFound) {
		reply(sys.ErrMemberNotRegistered)
		return
	}
	if err != nil {
		sys.LogMemberWarn(sys.MsgMemberStoreFail, user.Username, err)
		reply(sys.ErrMemberWishlistFail)
		return
	}

	now := time.Now()
	if !hasSlot {
		reply(wishlistText(m, now))
		return
	}

	item, ok := members.LookupWishlistItem(rawItem)
	if !ok {
		reply(fmt.Sprintf(sys.ErrMemberUnknownItem, strings.TrimSpace(rawItem)))
		return
	}

	err = memberStore.SetWishlistSlot(ctx, m.ID, slot, item, now)
	switch {
	case errors.Is(err, members.ErrCooldown):
		reply(fmt.Sprintf(sys.ErrMemberSlotCooldown, slot, m.Slot(slot).CooldownEnd().Unix()))
	case errors.Is(err, members.ErrNotFound):
		reply(sys.ErrMemberNotRegistered)
	case err != nil:
		sys.LogMemberWarn(sys.MsgMemberStoreFail, user.Username, err)
		reply(sys.ErrMemberWishlistFail)
	default:
		sys.LogMember(sys.MsgMemberWishlistSet, m.Name(), slot, item)
		reply(fmt.Sprintf(sys.MsgMemberWishlistReply, slot, item, now.Add(members.WishlistCooldown).Unix()))
	}
}

func wishlistText(m *members.Member, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("### %s's Wishlist\n", m.Name()))
	sb.WriteString("Use `/member wishlist slot item` to change a slot. A changed slot is locked for 1 day, so pick carefully.\n\n")
	for n := 1; n <= members.WishlistSlots; n++ {
		s := m.Slot(n)
		item := s.Item
		if item == "" {
			item = "Empty"
		}
		sb.WriteString(fmt.Sprintf("**Slot %d:** %s", n, item))
		if s.OnCooldown(now) {
			sb.WriteString(fmt.Sprintf(" (Cooldown: <t:%d:R>)", s.CooldownEnd().Unix()))
		}
		if n < members.WishlistSlots {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
