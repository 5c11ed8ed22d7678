package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
)

// Environment Variables
const (
	EnvDiscordToken     = "DISCORD_TOKEN"
	EnvGuildID          = "GUILD_ID"
	EnvDatabasePath     = "DATABASE_PATH"
	EnvMongoURI         = "MONGO_URI"
	EnvMongoDB          = "MONGO_DB"
	EnvEventTimezone    = "EVENT_TIMEZONE"
	EnvMandatoryChannel = "MANDATORY_CHANNEL_ID"
	EnvOptionalChannel  = "OPTIONAL_CHANNEL_ID"
	EnvSummaryChannel   = "SUMMARY_CHANNEL_ID"
	EnvMemberRole       = "MEMBER_ROLE_ID"
	EnvOfficerRole      = "OFFICER_ROLE_ID"
	EnvVoiceChannel     = "ATTENDANCE_VOICE_CHANNEL_ID"
	EnvGuildRoles       = "GUILD_ROLES"
	EnvCommandsChannel  = "BOT_COMMANDS_CHANNEL_ID"
	EnvMetricsAddr      = "METRICS_ADDR"
	EnvSilent           = "SILENT"
	EnvDebug            = "DEBUG"
)

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	MongoURI     string
	MongoDB      string
	Timezone     *time.Location
	Silent       bool
	MetricsAddr  string

	MandatoryChannelID string
	OptionalChannelID  string
	SummaryChannelID   string
	MemberRoleID       string
	OfficerRoleID      string
	VoiceChannelID     string

	// GuildRoles are the in-game guilds a member can be assigned to, in display order.
	GuildRoles        []GuildRole
	CommandsChannelID string
}

type GuildRole struct {
	Name   string
	RoleID string
}

// GuildRoleName returns the configured name of a guild role, or "" if it is not one.
func (c *Config) GuildRoleName(roleID string) string {
	for _, g := range c.GuildRoles {
		if g.RoleID == roleID {
			return g.Name
		}
	}
	return ""
}

// DefaultStoreName names the SQLite file and the MongoDB database when neither is configured.
const DefaultStoreName = "deme"

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv(EnvDatabasePath)
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, DefaultStoreName+".db")
	}

	mongoDB := os.Getenv(EnvMongoDB)
	if mongoDB == "" {
		mongoDB = DefaultStoreName
	}

	tzName := os.Getenv(EnvEventTimezone)
	if tzName == "" {
		tzName = "Europe/Paris"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf(MsgConfigInvalidTimezone, tzName, err)
	}

	silent, _ := strconv.ParseBool(os.Getenv(EnvSilent))

	guildRoles, err := parseGuildRoles(os.Getenv(EnvGuildRoles))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Token:              strings.TrimSpace(os.Getenv(EnvDiscordToken)),
		GuildID:            strings.TrimSpace(os.Getenv(EnvGuildID)),
		DatabasePath:       fmt.Sprintf("%s?_journal_mode=WAL&_timeout=5000", dbPath),
		MongoURI:           os.Getenv(EnvMongoURI),
		MongoDB:            mongoDB,
		Timezone:           loc,
		Silent:             silent,
		MetricsAddr:        os.Getenv(EnvMetricsAddr),
		MandatoryChannelID: strings.TrimSpace(os.Getenv(EnvMandatoryChannel)),
		OptionalChannelID:  strings.TrimSpace(os.Getenv(EnvOptionalChannel)),
		SummaryChannelID:   strings.TrimSpace(os.Getenv(EnvSummaryChannel)),
		MemberRoleID:       strings.TrimSpace(os.Getenv(EnvMemberRole)),
		OfficerRoleID:      strings.TrimSpace(os.Getenv(EnvOfficerRole)),
		VoiceChannelID:     strings.TrimSpace(os.Getenv(EnvVoiceChannel)),
		GuildRoles:         guildRoles,
		CommandsChannelID:  strings.TrimSpace(os.Getenv(EnvCommandsChannel)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// .env may set DEBUG or SILENT, so the logger is rebuilt once it is loaded.
	InitLogger(cfg.Silent || IsSilent, LogToFile)

	GlobalConfig = cfg
	return cfg, nil
}

// Validate ensures the configuration is valid and meets requirements.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && !isSnowflake(c.GuildID) {
		return fmt.Errorf(MsgConfigInvalidGuildID)
	}

	ids := map[string]string{
		EnvMandatoryChannel: c.MandatoryChannelID,
		EnvOptionalChannel:  c.OptionalChannelID,
		EnvSummaryChannel:   c.SummaryChannelID,
		EnvMemberRole:       c.MemberRoleID,
		EnvOfficerRole:      c.OfficerRoleID,
		EnvVoiceChannel:     c.VoiceChannelID,
		EnvCommandsChannel:  c.CommandsChannelID,
	}
	for name, id := range ids {
		if id != "" && !isSnowflake(id) {
			return fmt.Errorf(MsgConfigInvalidSnowflake, name)
		}
	}
	return nil
}

// parseGuildRoles reads "Guild 1:1308011055875624961,Guild 2:1308011121801953311".
func parseGuildRoles(raw string) ([]GuildRole, error) {
	var out []GuildRole
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		i := strings.LastIndex(entry, ":")
		if i <= 0 {
			return nil, fmt.Errorf(MsgConfigInvalidGuildRole, entry)
		}
		name, id := strings.TrimSpace(entry[:i]), strings.TrimSpace(entry[i+1:])
		if name == "" || !isSnowflake(id) {
			return nil, fmt.Errorf(MsgConfigInvalidGuildRole, entry)
		}
		out = append(out, GuildRole{Name: name, RoleID: id})
	}
	return out, nil
}

func isSnowflake(s string) bool {
	id, err := snowflake.Parse(s)
	return err == nil && id != 0
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "deme"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") || strings.HasSuffix(projectName, ".test") {
			projectName = "deme"
		}
	}
	return projectName
}
