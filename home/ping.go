package home

import (
	"fmt"
	"time"

	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
)

const pingRefreshID = "ping:refresh"

func init() {
	perm := discord.PermissionManageEvents

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "ping",
		Description:              "Check bot latency",
		DefaultMemberPermissions: omit.New(&perm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
	}, handlePing)

	sys.RegisterComponentHandler(pingRefreshID, handlePingRefresh)
}

// pingText reports the interaction round trip and the gateway heartbeat.
func pingText(interaction snowflake.ID, gateway time.Duration, now time.Time) string {
	text := fmt.Sprintf("# Pong! 🏓\n\n> **Interaction:** %dms", now.Sub(interaction.Time()).Milliseconds())
	if gateway > 0 {
		text += fmt.Sprintf("\n> **Gateway:** %dms", gateway.Milliseconds())
	}
	return text
}

func pingContainer(text string) discord.ContainerComponent {
	return discord.NewContainer(
		discord.NewTextDisplay(text),
		discord.NewActionRow(
			discord.NewSuccessButton("🔄 Refresh", pingRefreshID),
		),
	)
}

func handlePing(event *events.ApplicationCommandInteractionCreate) {
	text := pingText(event.ID(), event.Client().Gateway.Latency(), time.Now())
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		SetEphemeral(true).
		AddComponents(pingContainer(text)).
		Build())
	if err != nil {
		sys.LogDebug(sys.MsgPingReplyFail, err)
	}
}

func handlePingRefresh(event *events.ComponentInteractionCreate) {
	text := pingText(event.ID(), event.Client().Gateway.Latency(), time.Now())
	err := event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetIsComponentsV2(true).
		SetComponents(pingContainer(text)).
		Build())
	if err != nil {
		sys.LogDebug(sys.MsgPingReplyFail, err)
	}
}
