package home

import (
	"fmt"
	"strings"
	"time"

	"github.com/demetori/deme/members"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

func handleMemberPlanner(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !isRosterMember(event.Member()) {
		eventRespond(event, sys.ErrMemberNotMember)
		return
	}
	link := strings.TrimSpace(data.String("link"))
	if !members.ValidPlannerLink(link) {
		eventRespond(event, sys.ErrMemberInvalidLink)
		return
	}

	_ = event.DeferCreateMessage(true)
	client := event.Client()

	ctx, cancel := eventContext()
	defer cancel()

	user := event.User()
	name := displayName(event.Member(), user)
	if err := memberStore.SetPlanner(ctx, user.ID.String(), link, time.Now()); err != nil {
		sys.LogMemberWarn(sys.MsgMemberStoreFail, user.Username, err)
		eventFollowUp(client, event.ApplicationID(), event.Token(), sys.ErrMemberPlannerFailed)
		return
	}
	sys.LogMember(sys.MsgMemberPlannerUpdated, name)

	if id := commandsChannel(); id != 0 {
		if err := postText(ctx, client, id, fmt.Sprintf(sys.MsgMemberPlannerNotice, name, link)); err != nil {
			sys.LogMemberWarn(sys.MsgMemberNoticeFail, err)
		}
	}
	eventFollowUp(client, event.ApplicationID(), event.Token(), sys.MsgMemberPlannerReply)
}

// isRosterMember checks the configured member role. Without one, anyone in the guild qualifies.
func isRosterMember(member *discord.ResolvedMember) bool {
	if member == nil {
		return false
	}
	if sys.GlobalConfig == nil {
		return true
	}
	roleID, err := snowflake.Parse(sys.GlobalConfig.MemberRoleID)
	if err != nil || roleID == 0 {
		return true
	}
	return hasRole(member.RoleIDs, roleID) || isOfficer(member)
}

func commandsChannel() snowflake.ID {
	if sys.GlobalConfig == nil {
		return 0
	}
	id, err := snowflake.Parse(sys.GlobalConfig.CommandsChannelID)
	if err != nil {
		return 0
	}
	return id
}

