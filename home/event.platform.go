package home

import (
	"context"
	"fmt"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	memberPageSize   = 1000
	memberCacheTTL   = 5 * time.Minute
	directRateEvery  = 250 * time.Millisecond
	directRateBurst  = 5
	audienceCacheKey = "audience:"
)

// Platform adapts the disgo client to the attendance engine: it renders
// polls, delivers direct messages and enumerates the member role.
type Platform struct {
	client  *bot.Client
	cfg     *sys.Config
	dm      *rate.Limiter
	members *cache.Cache
}

func NewPlatform(client *bot.Client, cfg *sys.Config) *Platform {
	return &Platform{
		client:  client,
		cfg:     cfg,
		dm:      rate.NewLimiter(rate.Every(directRateEvery), directRateBurst),
		members: cache.New(memberCacheTTL, 2*memberCacheTTL),
	}
}

func (p *Platform) RenderPoll(ctx context.Context, ev *attendance.Event) error {
	return p.updatePoll(ctx, ev, false)
}

func (p *Platform) RenderConcluded(ctx context.Context, ev *attendance.Event) error {
	return p.updatePoll(ctx, ev, true)
}

func (p *Platform) updatePoll(ctx context.Context, ev *attendance.Event, concluded bool) error {
	channelID, messageID, err := pollIDs(ev)
	if err != nil {
		return err
	}
	_, err = p.client.Rest.UpdateMessage(channelID, messageID, pollUpdate(ev, concluded), rest.WithCtx(ctx))
	return err
}

func (p *Platform) SendSummary(ctx context.Context, ev *attendance.Event, s attendance.Summary) error {
	if p.cfg.SummaryChannelID == "" {
		return nil
	}
	channelID, err := snowflake.Parse(p.cfg.SummaryChannelID)
	if err != nil {
		return err
	}
	return postText(ctx, p.client, channelID, summaryText(ev, s))
}

// postText sends text to a channel, split over as many messages as it needs.
func postText(ctx context.Context, client *bot.Client, channelID snowflake.ID, text string) error {
	for _, msg := range textMessages(text) {
		if _, err := client.Rest.CreateMessage(channelID, msg, rest.WithCtx(ctx)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Platform) SendDirect(ctx context.Context, userID string, msg attendance.DirectMessage) error {
	uid, err := snowflake.Parse(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", attendance.ErrDelivery, err)
	}
	if err := p.dm.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", attendance.ErrDelivery, err)
	}

	channel, err := p.client.Rest.CreateDMChannel(uid, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", attendance.ErrDelivery, err)
	}
	if _, err := p.client.Rest.CreateMessage(channel.ID(), textMessage(directText(msg)), rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("%w: %v", attendance.ErrDelivery, err)
	}
	return nil
}

func (p *Platform) ResolvePoll(ctx context.Context, ev *attendance.Event) error {
	channelID, messageID, err := pollIDs(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", attendance.ErrChannelUnresolvable, err)
	}
	if _, err := p.client.Rest.GetMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("%w: %v", attendance.ErrChannelUnresolvable, err)
	}
	return nil
}

// Members lists the non-bot members holding the member role. Results are
// cached per guild for a few minutes since every roster view asks for them.
func (p *Platform) Members(ctx context.Context, guildID string) ([]attendance.Member, error) {
	if p.cfg.MemberRoleID == "" || guildID == "" {
		return nil, nil
	}
	if cached, ok := p.members.Get(audienceCacheKey + guildID); ok {
		return cached.([]attendance.Member), nil
	}

	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return nil, err
	}
	roleID, err := snowflake.Parse(p.cfg.MemberRoleID)
	if err != nil {
		return nil, err
	}

	var out []attendance.Member
	var after snowflake.ID
	for {
		chunk, err := p.client.Rest.GetMembers(gid, memberPageSize, after, rest.WithCtx(ctx))
		if err != nil {
			sys.LogAttendanceWarn(sys.MsgAudienceFetchFail, p.cfg.MemberRoleID, err)
			return nil, err
		}
		for _, m := range chunk {
			if !m.User.Bot && hasRole(m.RoleIDs, roleID) {
				out = append(out, attendance.Member{ID: m.User.ID.String(), Name: memberName(m)})
			}
		}
		if len(chunk) < memberPageSize {
			break
		}
		after = chunk[len(chunk)-1].User.ID
	}

	p.members.Set(audienceCacheKey+guildID, out, cache.DefaultExpiration)
	return out, nil
}

// InVoice returns the user ids currently connected to channelID, from the gateway cache.
func (p *Platform) InVoice(guildID, channelID snowflake.ID) map[string]bool {
	present := make(map[string]bool)
	for state := range p.client.Caches.VoiceStates(guildID) {
		if state.ChannelID != nil && *state.ChannelID == channelID {
			present[state.UserID.String()] = true
		}
	}
	return present
}

func pollIDs(ev *attendance.Event) (channelID, messageID snowflake.ID, err error) {
	if channelID, err = snowflake.Parse(ev.ChannelID); err != nil {
		return 0, 0, err
	}
	if messageID, err = snowflake.Parse(ev.ID); err != nil {
		return 0, 0, err
	}
	return channelID, messageID, nil
}

func hasRole(roles []snowflake.ID, want snowflake.ID) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func memberName(m discord.Member) string {
	if m.Nick != nil && *m.Nick != "" {
		return *m.Nick
	}
	return m.User.Username
}
