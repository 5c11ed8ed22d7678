package home

import (
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
)

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "status",
		Description:              "Show or hide the rotating event status (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "visible",
				Description: "Enable or disable status rotation",
				Required:    true,
			},
		},
	}, handleStatus)
}

func handleStatus(event *events.ApplicationCommandInteractionCreate) {
	visible := event.SlashCommandInteractionData().Bool("visible")

	value, content := "false", sys.MsgStatusHidden
	if visible {
		value, content = "true", sys.MsgStatusVisible
	}
	if err := sys.SetBotConfig(sys.AppContext, "status_visible", value); err != nil {
		content = sys.ErrGenericFailure
	}

	eventRespond(event, content)
}
