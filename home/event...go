package home

import (
	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
)

var (
	tracker  *attendance.Controller
	platform *Platform
)

// Bind hands the command handlers the running controller and platform adapter.
func Bind(ctrl *attendance.Controller, p *Platform) {
	tracker = ctrl
	platform = p
}

func init() {
	officerPerm := discord.PermissionManageEvents

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "event",
		Description:              "Create and manage attendance events",
		DefaultMemberPermissions: omit.New(&officerPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "create",
				Description: "Creates an event and lets members react for attendance",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "type",
						Description: "The type of event",
						Required:    true,
						Choices:     eventTypeChoices(),
					},
					discord.ApplicationCommandOptionString{
						Name:         "name",
						Description:  "Name of the event",
						Required:     true,
						Autocomplete: true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "requirement",
						Description: "Is this event mandatory or non-mandatory?",
						Required:    true,
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "Mandatory", Value: requirementMandatory},
							{Name: "Non-mandatory", Value: requirementOptional},
						},
					},
					discord.ApplicationCommandOptionString{
						Name:        "date",
						Description: "Date of the event in DD/MM/YYYY format",
					},
					discord.ApplicationCommandOptionString{
						Name:        "time",
						Description: "Time of the event in HH:MM (24h) format",
					},
					discord.ApplicationCommandOptionString{
						Name:        "when",
						Description: "Instead of date and time (e.g., 'tomorrow at 20:00', 'next friday at 8pm')",
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "responses",
				Description: "Show who answered an event poll",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "event",
						Description: "Message ID of the event poll",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "track",
				Description: "Tracks attendance for a specific event against the voice channel",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:         "name",
						Description:  "Name of the event to track attendance for",
						Required:     true,
						Autocomplete: true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "date",
						Description: "Date of the event in DD/MM/YYYY format",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "cancel",
				Description: "Close an event poll early and delete its record",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "event",
						Description: "Message ID of the event poll",
						Required:    true,
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}
		if tracker == nil {
			eventRespond(event, sys.ErrGenericFailure)
			return
		}

		switch *subCmd {
		case "create":
			handleEventCreate(event, data)
		case "responses":
			handleEventResponses(event, data)
		case "track":
			handleEventTrack(event, data)
		case "cancel":
			handleEventCancel(event, data)
		}
	})

	sys.RegisterAutocompleteHandler("event", handleEventAutocomplete)
	sys.RegisterComponentHandler(eventButtonPrefix, handleEventButton)
	sys.RegisterDMMessageHandler(handleEventDirectMessage)
}

func handleEventAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	if focused.Name != "name" {
		_ = event.AutocompleteResult(nil)
		return
	}

	var choices []discord.AutocompleteChoice
	for _, name := range matchEventNames(focused.String()) {
		choices = append(choices, discord.AutocompleteChoiceString{Name: name, Value: name})
	}
	_ = event.AutocompleteResult(choices)
}

// --- Shared helpers ---

func eventRespond(event *events.ApplicationCommandInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(content),
			),
		).
		SetEphemeral(true).
		Build())
	if err != nil {
		sys.LogAttendanceWarn(sys.MsgEventRespondError, err)
	}
}

// eventFollowUp replaces a deferred response. Text over the message limit
// continues in ephemeral follow-up messages.
func eventFollowUp(client *bot.Client, applicationID snowflake.ID, token, content string) {
	parts := splitText(content, textLimit)
	_, err := client.Rest.UpdateInteractionResponse(applicationID, token, discord.NewMessageUpdateBuilder().
		SetIsComponentsV2(true).
		AddComponents(
			discord.NewContainer(
				discord.NewTextDisplay(parts[0]),
			),
		).
		Build())
	if err != nil {
		sys.LogAttendanceWarn(sys.MsgEventRespondError, err)
		return
	}
	for _, part := range parts[1:] {
		msg := discord.NewMessageCreateBuilder().
			SetIsComponentsV2(true).
			AddComponents(discord.NewContainer(discord.NewTextDisplay(part))).
			SetEphemeral(true).
			Build()
		if _, err := client.Rest.CreateFollowupMessage(applicationID, token, msg); err != nil {
			sys.LogAttendanceWarn(sys.MsgEventRespondError, err)
			return
		}
	}
}

// isOfficer accepts either the configured officer role or the Manage Events permission.
func isOfficer(member *discord.ResolvedMember) bool {
	if member == nil {
		return false
	}
	if member.Permissions.Has(discord.PermissionManageEvents) {
		return true
	}
	if sys.GlobalConfig == nil || sys.GlobalConfig.OfficerRoleID == "" {
		return false
	}
	roleID, err := snowflake.Parse(sys.GlobalConfig.OfficerRoleID)
	if err != nil {
		return false
	}
	return hasRole(member.RoleIDs, roleID)
}

func displayName(member *discord.ResolvedMember, user discord.User) string {
	if member != nil {
		return memberName(member.Member)
	}
	return user.Username
}
