package home

import (
	"fmt"
	"strings"

	"github.com/demetori/deme/members"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/events"
)

func handleMemberList(event *events.ApplicationCommandInteractionCreate) {
	if !isOfficer(event.Member()) {
		eventRespond(event, sys.ErrMemberNoPermission)
		return
	}

	_ = event.DeferCreateMessage(false)

	ctx, cancel := eventContext()
	defer cancel()

	list, err := memberStore.List(ctx)
	reply := memberListText(list)
	if err != nil {
		sys.LogMemberWarn(sys.MsgMemberStoreFail, "roster", err)
		reply = sys.ErrMemberListFailed
	}
	eventFollowUp(event.Client(), event.ApplicationID(), event.Token(), reply)
}

func memberListText(list []*members.Member) string {
	var sb strings.Builder
	sb.WriteString("## Member List\n")
	if len(list) == 0 {
		sb.WriteString(pollNoOne + "\n")
	}
	for _, g := range members.GroupByWeapons(list) {
		sb.WriteString(fmt.Sprintf("**%s - %d total**\n", g.Weapons, len(g.Members)))
		for _, m := range g.Members {
			if m.Gear.PlannerLink != "" {
				sb.WriteString(fmt.Sprintf("- %s - [Planner](%s)\n", m.Name(), m.Gear.PlannerLink))
			} else {
				sb.WriteString(fmt.Sprintf("- %s - No link provided for planner\n", m.Name()))
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("-# Total Members: %d", len(list)))
	return sb.String()
}
