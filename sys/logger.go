package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	infoColor  = color.New(color.FgHiBlack)
	warnColor  = color.New(color.FgHiYellow)
	errorColor = color.New(color.FgHiRed)
	fatalColor = color.New(color.FgHiRed, color.Bold)

	databaseColor   = color.New(color.FgHiBlack)
	attendanceColor = color.New(color.FgHiMagenta)
	recoveryColor   = color.New(color.FgHiCyan)
	loaderColor     = color.New(color.FgHiBlue)
	statusColor     = color.New(color.FgHiGreen)
	memberColor     = color.New(color.FgHiWhite)

	DefaultTimeFormat = "15:04:05"
	IsSilent          = false
	LogToFile         = false
	Logger            *slog.Logger

	logFile *os.File
	logMu   sync.Mutex
)

func init() {
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger and returns the log filename if one was created
func InitLogger(silent bool, saveToFile bool) string {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv(EnvDebug)) == "true" {
		level = slog.LevelDebug
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var logName string

	if LogToFile {
		logName = GetProjectName() + ".log"
		if exePath, err := os.Executable(); err == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		f, err := os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
		} else {
			logFile = f
			writer = io.MultiWriter(os.Stdout, NewStripANSIWriter(logFile))
		}
	}

	color.NoColor = false

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	return logName
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), slog.LevelError+4, msg)
	os.Exit(1)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogAttendance(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "attendance"))
}

func LogAttendanceWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...), slog.String("component", "attendance"))
}

func LogMember(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "member"))
}

func LogMemberWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...), slog.String("component", "member"))
}

func LogRecovery(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "recovery"))
}

func LogStatusRotator(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "status"))
}

func LogLoader(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "loader"))
}

// --- Custom Slog Handler ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := time.Now().Format(DefaultTimeFormat)
	var levelStr string
	var levelColor *color.Color

	switch {
	case r.Level >= slog.LevelError+4:
		levelStr = "FATAL"
		levelColor = fatalColor
	case r.Level >= slog.LevelError:
		levelStr = "ERROR"
		levelColor = errorColor
	case r.Level >= slog.LevelWarn:
		levelStr = "WARN"
		levelColor = warnColor
	case r.Level >= slog.LevelInfo:
		levelStr = "INFO"
		levelColor = infoColor
	default:
		levelStr = "DEBUG"
		levelColor = infoColor
	}

	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	// Output: 15:04:05 [LEVEL] [COMPONENT] Message
	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		compColor := getComponentColor(component)
		fmt.Fprintf(h.w, " %s\n", colorizeWithResets(compColor, fmt.Sprintf("[%s] %s", component, r.Message)))
	} else {
		fmt.Fprintf(h.w, " %s\n", colorizeWithResets(levelColor, fmt.Sprintf("[%s] %s", levelStr, r.Message)))
	}

	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "ATTENDANCE":
		return attendanceColor
	case "RECOVERY":
		return recoveryColor
	case "LOADER":
		return loaderColor
	case "STATUS":
		return statusColor
	case "MEMBER":
		return memberColor
	default:
		return color.New(color.FgCyan)
	}
}

// colorizeWithResets re-applies the outer color after every reset code in text,
// so nested coloring inside a component message keeps the component color afterwards.
func colorizeWithResets(c *color.Color, text string) string {
	if !strings.Contains(text, "\x1b[0m") {
		return c.Sprint(text)
	}

	marker := "@@@MSG@@@"
	wrapped := c.Sprint(marker)
	idx := strings.Index(wrapped, marker)
	if idx <= 0 {
		return text
	}
	startSeq := wrapped[:idx]

	modifiedText := strings.ReplaceAll(text, "\x1b[0m", "\x1b[0m"+startSeq)
	return c.Sprint(modifiedText)
}

// StripANSIWriter removes color codes before writing to the log file.
type StripANSIWriter struct {
	w  io.Writer
	re *regexp.Regexp
}

func NewStripANSIWriter(w io.Writer) *StripANSIWriter {
	return &StripANSIWriter{
		w:  w,
		re: regexp.MustCompile(`\x1b\[[0-9;]*m`),
	}
}

func (s *StripANSIWriter) Write(p []byte) (n int, err error) {
	clean := s.re.ReplaceAll(p, []byte(""))
	_, err = s.w.Write(clean)
	return len(p), err
}

// @src
const (
	// Configuration
	MsgConfigFailedToLoad     = "Failed to load config: %v"
	MsgConfigMissingToken     = "DISCORD_TOKEN is not set in .env file"
	MsgConfigInvalidGuildID   = "invalid GUILD_ID: must be a valid Snowflake"
	MsgConfigInvalidSnowflake = "invalid %s: must be a valid Snowflake"
	MsgConfigInvalidTimezone  = "invalid EVENT_TIMEZONE %q: %w"
	MsgConfigInvalidGuildRole = "invalid GUILD_ROLES entry %q: want Name:RoleID"

	// Data layer
	MsgDatabaseInitSuccess  = "Database initialized successfully"
	MsgDatabaseTableError   = "Failed to create table: %w"
	MsgDatabasePragmaError  = "Failed to set pragma %s: %w"
	MsgMongoConnected       = "Connected to MongoDB (database: %s)"
	MsgMongoConnectFail     = "failed to connect to MongoDB: %w"
	MsgMongoPingFail        = "failed to ping MongoDB: %w"
	MsgMongoDisconnectFail  = "failed to disconnect from MongoDB: %w"
	MsgStoreUsingSQLite     = "MONGO_URI not set, storing events and members in SQLite"
	MsgStoreIndexFail       = "failed to ensure indexes: %w"
	MsgMetricsListening     = "Metrics listening on %s"
	MsgMetricsServeFail     = "Metrics server stopped: %v"

	// Command Registry
	MsgLoaderSyncCommands   = "Syncing %s commands..."
	MsgLoaderUpToDate       = "Commands are up to date. (Hash: %s)"
	MsgLoaderDevStarting    = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered  = "[DEV] Registered: %s"
	MsgLoaderDevFail        = "[DEV] Registration failed: %w"
	MsgLoaderProdStarting   = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered = "[PROD] Registered: %s"
	MsgLoaderProdFail       = "[PROD] Global registration failed: %w"
	MsgLoaderPanicRecovered = "Panic recovered in handler: %v"
	MsgDaemonStarting       = "Starting..."
	MsgDaemonShutdown       = "Stopping daemons..."
	MsgStatusRotated        = "Status set to %q (next in %s)"
	MsgStatusUpdateFail     = "Failed to update presence: %v"
	MsgStatusVisible        = "✅ Status rotation enabled!"
	MsgStatusHidden         = "✅ Status rotation disabled!"
	MsgPingReplyFail        = "Failed to answer ping: %v"

	// Bot Lifecycle
	MsgBotStarting       = "Starting %s..."
	MsgBotReady          = "%s is ready! (ID: %s) (PID: %d)"
	MsgBotShutdown       = "Shutting down %s..."
	MsgBotRegisterFail   = "Command registration failed: %v"
	MsgBotClientFail     = "failed to create client: %w"
	MsgBotGatewayFail    = "failed to open gateway: %w"
	MsgBotDatabaseFail   = "failed to initialize database: %w"
	MsgBotStoreFail      = "failed to initialize stores: %w"
)

// @attendance
const (
	// System logs
	MsgEventCreated           = "Event %q on %s created by %s (message %s)"
	MsgEventVote              = "%s marked as %s for event %q on %s"
	MsgEventVoteDuplicate     = "%s re-selected %s for event %q"
	MsgEventSwitched          = "%s switched to %s for event %q on %s"
	MsgEventConcluded         = "Event %q on %s has ended. Collecting responses is now closed."
	MsgEventCancelled         = "Event %q on %s cancelled"
	MsgEventRenderFail        = "Failed to render poll for event %s: %v"
	MsgEventSummaryFail       = "Failed to send summary for event %s: %v"
	MsgEventStoreRetry        = "Store write for event %s failed (attempt %d/%d): %v"
	MsgEventStoreDirty        = "Event %s is out of sync with the store: %v"
	MsgEventStoreSynced       = "Event %s resynchronized with the store"
	MsgAbsenceOpened          = "Absence request opened for %s on event %q (window %s)"
	MsgAbsenceSkipped         = "Absence request for %s on event %s skipped: window already elapsed"
	MsgAbsenceClosed          = "Absence request for %s on event %q closed: %s"
	MsgAbsenceDeliveryFail    = "Failed to DM %s about event %s: %v"
	MsgAbsenceReasonStoreFail = "Failed to store absence reason for %s on event %s: %v"
	MsgAbsenceReplyFail       = "Failed to record absence reply from %s: %v"
	MsgAudienceFetchFail      = "Failed to fetch members with role %s: %v"
	MsgEventCreateFail        = "Failed to create event: %v"
	MsgEventDiscardFail       = "Failed to discard record of event %s after a failed create: %v"
	MsgEventCancelFail        = "Failed to cancel event %s: %v"
	MsgEventPostFail          = "Failed to post event poll: %v"
	MsgEventRespondError      = "Failed to respond to interaction: %v"
	MsgEventTrackFail         = "Failed to track attendance for %q on %s: %v"
	MsgNaturalTimeInitFail    = "Failed to initialize naturaltime parser: %v"

	// Recovery
	MsgRecoveryStarting  = "Starting to reinitialize event sessions..."
	MsgRecoveryNone      = "No active events found for reinitialisation."
	MsgRecoveryFound     = "Found %d active events to reinitialise."
	MsgRecoveryRestored  = "Session restored for event %q on %s, closing in %s"
	MsgRecoverySkipped   = "Skipping event %s: %v"
	MsgRecoveryDrift     = "Counters for event %s drifted (stored %d/%d, actual %d/%d), repairing"
	MsgRecoveryQueryFail = "Failed to query active events: %v"
	MsgRecoveryDone      = "Reinitialisation complete: %d restored, %d skipped"

	// User-facing messages
	MsgVoteSelected        = "You have selected: %s for event \"%s\" on %s."
	MsgVoteAlreadySelected = "You have already selected this option."
	MsgVoteNotSaved        = "Your response was recorded but may not have been saved. An officer has been notified in the logs."
	ErrEventClosed         = "This event has concluded. Registration is no longer possible."
	ErrEventUnknown        = "This event is no longer being tracked."
	ErrEventNoPermission   = "You do not have permission to use this command."
	ErrEventInvalidDate    = "Please provide a valid date in DD/MM/YYYY format (e.g., 25/12/2023)."
	ErrEventInvalidTime    = "Please provide a valid time in 24-hour format (e.g., 14:30 for 2:30 PM)."
	ErrEventMissingWhen    = "Provide either date and time, or when."
	ErrEventParseWhen      = "Failed to parse the date/time. Try formats like 'tomorrow at 20:00' or 'next friday at 8pm'."
	ErrEventPastTime       = "The date and time provided must be in the future."
	ErrEventCreateFailed   = "Failed to create the event. Please try again."
	ErrEventNoChannel      = "Could not find the channel to post this event in."
	ErrEventNotFound       = "No event found for **%s** on **%s**."
	ErrEventTrackDisabled  = "Attendance tracking is not configured."
	ErrEventInvalidID      = "Invalid event message ID."
	ErrEventExists         = "An event named **%s** already exists on **%s**."
	ErrEventNotLive        = "This event is no longer active and cannot be cancelled."
	ErrEventStoreDown      = "The event was posted but could not be saved, so it has been removed. Please try again later."
	ErrGenericFailure      = "Something went wrong while processing your request."
	MsgEventCreatedReply   = "Event **%s** created for <t:%d:F> (<t:%d:R>)."
	MsgEventCancelledReply = "Event **%s** cancelled."
	MsgEventTrackPosted    = "Attendance report for **%s** on **%s** posted."

	MsgAbsenceRequestTitle = "Event Absence Request"
	MsgAbsenceRequestBody  = "Thank you for reacting to the event. Please provide a reason for not attending %s (%s) by typing here in our DMs.\nI will be able to accept responses until the event starts."
	MsgAbsenceThanks       = "Thank you for providing a reason for %s."
	MsgAbsenceReprompt     = "Please reply with a text message explaining your absence."
	MsgAbsenceMorePending  = "You still have %d absence request(s) waiting. Your next message answers the oldest one."
	MsgAbsenceTimedOut     = "No reason was provided within the time limit for %s."
	MsgAbsenceNotNeeded    = "You changed your decision to attend %s. There is no need to respond to the previous message I sent now."
)

// @member
const (
	MsgMemberAdded          = "%s added %s (%s, %s) to the roster"
	MsgMemberExists         = "%s is already on the roster, keeping the existing entry"
	MsgMemberRemoved        = "%s removed %s from the roster"
	MsgMemberPlannerUpdated = "%s updated their planner link"
	MsgMemberWishlistSet    = "%s set wishlist slot %d to %q"
	MsgMemberNickFail       = "Failed to set nickname of %s: %v"
	MsgMemberRoleFail       = "Failed to change role %s for %s: %v"
	MsgMemberRolesFetchFail = "Failed to fetch guild roles: %v"
	MsgMemberStoreFail      = "Member store operation failed for %s: %v"
	MsgMemberNoticeFail     = "Failed to post planner notice: %v"

	ErrMemberNoPermission  = "You do not have permission to use this command."
	ErrMemberNotMember     = "You must be a member to use this command."
	ErrMemberRoleMissing   = "Role '%s' not found in the server."
	ErrMemberRoleFailed    = "There was an error assigning the roles."
	ErrMemberRemoveFailed  = "There was an error removing roles or database entry."
	ErrMemberUnknownGuild  = "Unknown guild. Pick one of the suggested guilds."
	ErrMemberNotRegistered = "You are not registered in the system."
	ErrMemberInvalidLink   = "Please provide a valid Questlog.gg link to the character builder page (must start with 'https://questlog.gg/throne-and-liberty/en/character-builder/')."
	ErrMemberPlannerFailed = "❌ An error occurred while updating your planner link. Please try again later."
	ErrMemberUnknownItem   = "Unknown item **%s**. Pick one of the suggested items."
	ErrMemberSlotCooldown  = "Slot %d was changed recently. You can change it again <t:%d:R>."
	ErrMemberListFailed    = "There was an error retrieving the member list."
	ErrMemberWishlistArgs  = "Provide both a slot and an item to change your wishlist."
	ErrMemberWishlistFail  = "There was an error retrieving your wishlist."
	MsgMemberHasRoles      = "%s already has the '%s' and '%s' roles."
	MsgMemberAddedReply    = "Roles have been assigned to %s and they have been added to the database. Their nickname has also been updated to their IGN (%s). They have been assigned to %s."
	MsgMemberNoRoles       = "There are no roles to remove for %s."
	MsgMemberRemovedReply  = ":white_check_mark: Roles removed successfully for %s."
	MsgMemberPlannerReply  = "✅ Your Questlog.gg character builder link has been successfully updated."
	MsgMemberPlannerNotice = "> ✅ %s has updated their planner link: %s - Database updated."
	MsgMemberWishlistReply = "✅ Slot %d is now **%s**. It can be changed again <t:%d:R>."
)
