package proc

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
)

const configKeyStatus = "status_visible"

var StartTime = time.Now().UTC()

// RegisterStatusRotator cycles the bot presence through live poll stats.
// /status can hide it through the bot_config table.
func RegisterStatusRotator(ctrl *attendance.Controller) {
	var client atomic.Pointer[bot.Client]
	sys.OnClientReady(func(ctx context.Context, c *bot.Client) {
		client.Store(c)
	})
	sys.RegisterDaemon(sys.LogStatusRotator, func(ctx context.Context) (bool, func(), func()) {
		c := client.Load()
		if c == nil {
			return false, nil, nil
		}
		return true, func() { runStatusRotator(ctx, c, ctrl) }, nil
	})
}

func rotationInterval() time.Duration {
	return time.Duration(30+rand.Intn(31)) * time.Second
}

func runStatusRotator(ctx context.Context, client *bot.Client, ctrl *attendance.Controller) {
	var last string
	for {
		next := rotationInterval()
		last = updateStatus(ctx, client, ctrl, last, next)
		select {
		case <-time.After(next):
		case <-ctx.Done():
			return
		}
	}
}

func updateStatus(ctx context.Context, client *bot.Client, ctrl *attendance.Controller, last string, next time.Duration) string {
	if visible, err := sys.GetBotConfig(ctx, configKeyStatus); err == nil && visible == "false" {
		_ = client.SetPresence(ctx, gateway.WithOnlineStatus(discord.OnlineStatusOnline))
		return last
	}

	var live []*attendance.Event
	for _, id := range ctrl.Active() {
		if ev, ok := ctrl.Snapshot(id); ok {
			live = append(live, ev)
		}
	}
	now := ctrl.Clock().Now()
	choice := pickStatus(statusChoices(live, now, now.Sub(StartTime), client.Gateway.Latency()), last, rand.Intn)

	err := client.SetPresence(ctx,
		gateway.WithOnlineStatus(discord.OnlineStatusOnline),
		gateway.WithPlayingActivity(choice),
	)
	if err != nil {
		sys.LogStatusRotator(sys.MsgStatusUpdateFail, err)
		return last
	}
	sys.LogStatusRotator(sys.MsgStatusRotated, choice, next)
	return choice
}

// statusChoices lists every presence line worth showing right now. Uptime is always present.
func statusChoices(live []*attendance.Event, now time.Time, uptime, latency time.Duration) []string {
	var out []string
	if len(live) > 0 {
		out = append(out, fmt.Sprintf("Tracking %d event%s", len(live), plural(len(live))))

		var soonest *attendance.Event
		for _, ev := range live {
			if !ev.Deadline().After(now) {
				continue
			}
			if soonest == nil || ev.Deadline().Before(soonest.Deadline()) {
				soonest = ev
			}
		}
		if soonest != nil {
			out = append(out, fmt.Sprintf("Next: %s in %s", soonest.Name, shortDuration(soonest.Deadline().Sub(now))))
		}
	}
	out = append(out, "Uptime: "+shortDuration(uptime))
	if latency > 0 {
		out = append(out, fmt.Sprintf("Ping: %dms", latency.Milliseconds()))
	}
	return out
}

// pickStatus avoids repeating last unless it is the only choice.
func pickStatus(choices []string, last string, intn func(int) int) string {
	fresh := make([]string, 0, len(choices))
	for _, c := range choices {
		if c != last {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return choices[0]
	}
	return fresh[intn(len(fresh))]
}

func shortDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h >= 24:
		return fmt.Sprintf("%dd %dh", h/24, h%24)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
