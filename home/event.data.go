package home

import (
	"strings"

	"github.com/disgoorg/disgo/discord"
)

var eventTypes = []string{
	"Field Boss",
	"Archboss",
	"Boonstone",
	"Riftstone",
	"Guild Bosses",
	"Castle Siege",
	"Guild Event",
	"Tax Delivery",
}

var eventNames = []string{
	// Conflict and Peace
	"Conflict Boss",
	"Adentus (Conflict)",
	"Ahzreil (Conflict)",
	"Aridus (Conflict)",
	"Chernobog (Conflict)",
	"Cornelius (Conflict)",
	"Excavator-9 (Conflict)",
	"Grand Aelon (Conflict)",
	"Junobote (Conflict)",
	"Kowazan (Conflict)",
	"Minezerok (Conflict)",
	"Nirma (Conflict)",
	"Queen Bellandir (Conflict)",
	"Queen Bellandir (Peace)",
	"Talus (Conflict)",
	"Tevent (Conflict)",
	"Tevent (Peace)",

	// Boonstones
	"Abandoned Stonemason Town Boonstone",
	"Akidu Valley Boonstone",
	"Blackhowl Plains Boonstone",
	"Carmine Forest Boonstone",
	"Fonos Basin Boonstone",
	"Golden Rye Pastures Boonstone",
	"Greyclaw Forest Boonstone",
	"Manawastes Boonstone",
	"Monolith Wastelands Boonstone",
	"Moonlight Desert Boonstone",
	"Nesting Grounds Boonstone",
	"Purelight Hill Boonstones",
	"Ruins of Turayne Boonstone",
	"Sandworm Lair Boonstone",
	"Shattered Temple Boonstone",
	"The Raging Wilds Boonstone",
	"Urstella Fields Boonstone",
	"Windhill Shores Boonstone",

	// Riftstones
	"Adentus Riftstone",
	"Ahzreil Riftstone",
	"Chernobog Riftstone",
	"Excavator-9 Riftstone",
	"Grand Aelon Riftstone",
	"Kowazan Riftstone",
	"Malakar Riftstone",
	"Morokai Riftstone",
	"Talus Riftstone",

	"All Guild Bosses",
	"Castle Siege",
	"Tax Delivery",
	"Guild Event",
}

var eventImages = map[string]string{
	"Field Boss":   "https://i.imgur.com/bI3KkEx.png",
	"Riftstone":    "https://i.imgur.com/yuvEDiu.png",
	"Boonstone":    "https://i.imgur.com/hjij8nV.png",
	"Castle Siege": "https://i.imgur.com/yA34U6J.png",
	"Guild Bosses": "https://i.imgur.com/EwBHdKq.png",
	"Archboss":     "https://i.imgur.com/vsjnX1w.png",
	"Guild Event":  "https://i.imgur.com/vGxe6B7.png",
	"Tax Delivery": "https://i.imgur.com/ka4Yz55.png",
}

const backupEventImage = "https://i.imgur.com/iNR6sxc.png"

func eventImage(eventType string) string {
	if img, ok := eventImages[eventType]; ok {
		return img
	}
	return backupEventImage
}

func eventTypeChoices() []discord.ApplicationCommandOptionChoiceString {
	choices := make([]discord.ApplicationCommandOptionChoiceString, 0, len(eventTypes))
	for _, t := range eventTypes {
		choices = append(choices, discord.ApplicationCommandOptionChoiceString{Name: t, Value: t})
	}
	return choices
}

// matchEventNames returns up to 25 known names containing query, case-insensitively.
func matchEventNames(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []string
	for _, name := range eventNames {
		if strings.Contains(strings.ToLower(name), query) {
			out = append(out, name)
			if len(out) == 25 {
				break
			}
		}
	}
	return out
}
