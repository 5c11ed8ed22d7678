package home

import (
	"strings"

	"github.com/demetori/deme/members"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

var memberStore members.Store

// BindMembers hands the roster handlers their store.
func BindMembers(st members.Store) {
	memberStore = st
}

func init() {
	minSlot, maxSlot := 1, members.WishlistSlots

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "member",
		Description: "Manage the guild roster",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "add",
				Description: "Adds roles to a member in the server",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Select the member",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:        "weapon1",
						Description: "Select the first weapon",
						Required:    true,
						Choices:     weaponChoices(),
					},
					discord.ApplicationCommandOptionString{
						Name:        "weapon2",
						Description: "Select the second weapon",
						Required:    true,
						Choices:     weaponChoices(),
					},
					discord.ApplicationCommandOptionString{
						Name:        "ign",
						Description: "The member's in-game name, used as their server nickname",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:         "guild",
						Description:  "The guild the member will be added to",
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Removes every role from a user and deletes their roster entry",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Select the user to remove roles from",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "list",
				Description: "Lists all members with their weapons and a link to their planner",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "planner",
				Description: "Update your Questlog.gg planner link",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "link",
						Description: "Link to your Questlog.gg character builder",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "wishlist",
				Description: "View your item wishlist, or change one slot",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "slot",
						Description: "Slot to change",
						MinValue:    &minSlot,
						MaxValue:    &maxSlot,
					},
					discord.ApplicationCommandOptionString{
						Name:         "item",
						Description:  "Item to put in the slot",
						Autocomplete: true,
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
		if memberStore == nil {
			eventRespond(event, sys.ErrGenericFailure)
			return
		}

		switch *subCmd {
		case "add":
			handleMemberAdd(event, data)
		case "remove":
			handleMemberRemove(event, data)
		case "list":
			handleMemberList(event)
		case "planner":
			handleMemberPlanner(event, data)
		case "wishlist":
			handleMemberWishlist(event, data)
		}
	})

	sys.RegisterAutocompleteHandler("member", handleMemberAutocomplete)
}

func weaponChoices() []discord.ApplicationCommandOptionChoiceString {
	out := make([]discord.ApplicationCommandOptionChoiceString, 0, len(members.Weapons))
	for _, w := range members.Weapons {
		out = append(out, discord.ApplicationCommandOptionChoiceString{Name: w, Value: w})
	}
	return out
}

func handleMemberAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()

	var choices []discord.AutocompleteChoice
	switch focused.Name {
	case "guild":
		for _, g := range matchGuildRoles(sys.GlobalConfig, focused.String()) {
			choices = append(choices, discord.AutocompleteChoiceString{Name: g.Name, Value: g.RoleID})
		}
	case "item":
		for _, item := range members.MatchWishlistItems(focused.String()) {
			choices = append(choices, discord.AutocompleteChoiceString{Name: item, Value: item})
		}
	}
	_ = event.AutocompleteResult(choices)
}

func matchGuildRoles(cfg *sys.Config, query string) []sys.GuildRole {
	if cfg == nil {
		return nil
	}
	query = strings.ToLower(strings.TrimSpace(query))
	var out []sys.GuildRole
	for _, g := range cfg.GuildRoles {
		if query == "" || strings.Contains(strings.ToLower(g.Name), query) {
			out = append(out, g)
		}
	}
	return out
}
