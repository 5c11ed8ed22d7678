package home

import (
	"errors"
	"fmt"
	"strings"

	"github.com/demetori/deme/members"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// handleMemberAdd gives a recruit the member role and their weapon pair role,
// renames them to their in-game name and records them on the roster. The
// guild role is only granted when the roster entry is new.
func handleMemberAdd(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !isOfficer(event.Member()) {
		eventRespond(event, sys.ErrMemberNoPermission)
		return
	}
	guildID := event.GuildID()
	target, ok := data.OptMember("user")
	cfg := sys.GlobalConfig
	if guildID == nil || !ok || cfg == nil {
		eventRespond(event, sys.ErrGenericFailure)
		return
	}

	ign := strings.TrimSpace(data.String("ign"))
	guildRole := strings.TrimSpace(data.String("guild"))
	guildName := cfg.GuildRoleName(guildRole)
	if guildName == "" {
		eventRespond(event, sys.ErrMemberUnknownGuild)
		return
	}

	_ = event.DeferCreateMessage(false)
	client := event.Client()
	reply := func(content string) {
		eventFollowUp(client, event.ApplicationID(), event.Token(), content)
	}

	ctx, cancel := eventContext()
	defer cancel()

	roles, err := client.Rest.GetRoles(*guildID, rest.WithCtx(ctx))
	if err != nil {
		sys.LogMemberWarn(sys.MsgMemberRolesFetchFail, err)
		reply(sys.ErrMemberRoleFailed)
		return
	}
	memberRole, ok := memberRoleFor(roles, cfg.MemberRoleID)
	if !ok {
		reply(fmt.Sprintf(sys.ErrMemberRoleMissing, "member"))
		return
	}
	weaponNames := members.WeaponRoleNames(data.String("weapon1"), data.String("weapon2"))
	weaponRole, ok := findRole(roles, weaponNames...)
	if !ok {
		reply(fmt.Sprintf(sys.ErrMemberRoleMissing, weaponNames[0]))
		return
	}

	if hasRole(target.RoleIDs, memberRole.ID) && hasRole(target.RoleIDs, weaponRole.ID) {
		reply(fmt.Sprintf(sys.MsgMemberHasRoles, ign, memberRole.Name, weaponRole.Name))
		return
	}

	user := target.User
	for _, role := range []discord.Role{memberRole, weaponRole} {
		if err := client.Rest.AddMemberRole(*guildID, user.ID, role.ID, rest.WithCtx(ctx)); err != nil {
			sys.LogMemberWarn(sys.MsgMemberRoleFail, role.Name, user.Username, err)
			reply(sys.ErrMemberRoleFailed)
			return
		}
	}

	nick := ign
	if _, err := client.Rest.UpdateMember(*guildID, user.ID, discord.MemberUpdate{Nick: &nick}, rest.WithCtx(ctx)); err != nil {
		sys.LogMemberWarn(sys.MsgMemberNickFail, user.Username, err)
	}

	rec := members.NewMember(user.ID.String(), user.Username, user.EffectiveName(), ign, weaponRole.Name, guildRole)
	err = memberStore.Create(ctx, rec)
	switch {
	case errors.Is(err, members.ErrExists):
		sys.LogMember(sys.MsgMemberExists, user.Username)
	case err != nil:
		sys.LogMemberWarn(sys.MsgMemberStoreFail, user.Username, err)
		reply(sys.ErrMemberRoleFailed)
		return
	default:
		if id, err := snowflake.Parse(guildRole); err == nil {
			if err := client.Rest.AddMemberRole(*guildID, user.ID, id, rest.WithCtx(ctx)); err != nil {
				sys.LogMemberWarn(sys.MsgMemberRoleFail, guildName, user.Username, err)
			}
		}
		sys.LogMember(sys.MsgMemberAdded, event.User().Username, user.Username, weaponRole.Name, guildName)
	}

	reply(fmt.Sprintf(sys.MsgMemberAddedReply, user.EffectiveName(), ign, guildName))
}

// handleMemberRemove strips every role but @everyone and drops the roster entry.
func handleMemberRemove(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !isOfficer(event.Member()) {
		eventRespond(event, sys.ErrMemberNoPermission)
		return
	}
	guildID := event.GuildID()
	target, ok := data.OptMember("user")
	if guildID == nil || !ok {
		eventRespond(event, sys.ErrGenericFailure)
		return
	}

	_ = event.DeferCreateMessage(false)
	client := event.Client()
	reply := func(content string) {
		eventFollowUp(client, event.ApplicationID(), event.Token(), content)
	}

	ctx, cancel := eventContext()
	defer cancel()

	user := target.User
	name := memberName(target.Member)
	if err := memberStore.Delete(ctx, user.ID.String()); err != nil && !errors.Is(err, members.ErrNotFound) {
		sys.LogMemberWarn(sys.MsgMemberStoreFail, user.Username, err)
		reply(sys.ErrMemberRemoveFailed)
		return
	}

	roleIDs := removableRoles(target.RoleIDs, *guildID)
	if len(roleIDs) == 0 {
		reply(fmt.Sprintf(sys.MsgMemberNoRoles, name))
		return
	}

	failed := false
	for _, id := range roleIDs {
		if err := client.Rest.RemoveMemberRole(*guildID, user.ID, id, rest.WithCtx(ctx)); err != nil {
			sys.LogMemberWarn(sys.MsgMemberRoleFail, id, user.Username, err)
			failed = true
		}
	}
	if failed {
		reply(sys.ErrMemberRemoveFailed)
		return
	}

	sys.LogMember(sys.MsgMemberRemoved, event.User().Username, user.Username)
	reply(fmt.Sprintf(sys.MsgMemberRemovedReply, name))
}

// findRole returns the first role whose name matches one of names, ignoring case.
func findRole(roles []discord.Role, names ...string) (discord.Role, bool) {
	for _, name := range names {
		for _, r := range roles {
			if strings.EqualFold(r.Name, name) {
				return r, true
			}
		}
	}
	return discord.Role{}, false
}

// memberRoleFor prefers the configured member role and falls back to one named "member".
func memberRoleFor(roles []discord.Role, configured string) (discord.Role, bool) {
	if id, err := snowflake.Parse(configured); err == nil && id != 0 {
		for _, r := range roles {
			if r.ID == id {
				return r, true
			}
		}
	}
	return findRole(roles, "member")
}

// removableRoles drops @everyone, whose ID is the guild ID.
func removableRoles(roleIDs []snowflake.ID, guildID snowflake.ID) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id != guildID {
			out = append(out, id)
		}
	}
	return out
}
