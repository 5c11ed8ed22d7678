package store

import (
	"context"
	"testing"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deadline = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func sampleEvent(id, name string) *attendance.Event {
	return &attendance.Event{
		ID:        id,
		ChannelID: "100",
		GuildID:   "200",
		Type:      "Siege",
		Name:      name,
		Creator:   "officer",
		Details: attendance.Details{
			Date:      "14/03/2026",
			Time:      "20:00",
			DateTime:  deadline,
			Mandatory: true,
		},
	}
}

// exerciseStore runs the behaviour every attendance.Store backend must share.
func exerciseStore(t *testing.T, st attendance.Store) {
	ctx := context.Background()

	t.Run("insert and find", func(t *testing.T) {
		require.NoError(t, st.Insert(ctx, sampleEvent("e1", "Siege Night")))

		got, err := st.FindByID(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, "Siege Night", got.Name)
		assert.True(t, got.Details.DateTime.Equal(deadline))
		assert.True(t, got.Mandatory())
		assert.Empty(t, got.Responses)

		byKey, err := st.FindOne(ctx, "Siege Night", "14/03/2026")
		require.NoError(t, err)
		assert.Equal(t, "e1", byKey.ID)

		_, err = st.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, attendance.ErrNotFound)
	})

	t.Run("duplicate natural key", func(t *testing.T) {
		err := st.Insert(ctx, sampleEvent("e2", "Siege Night"))
		assert.ErrorIs(t, err, attendance.ErrConflict)
	})

	t.Run("append keeps counters paired", func(t *testing.T) {
		require.NoError(t, st.AppendResponse(ctx, "e1", attendance.Response{UserID: "u1", Name: "Ayla", Status: attendance.StatusAttending}))
		require.NoError(t, st.AppendResponse(ctx, "e1", attendance.Response{UserID: "u2", Name: "Bram", Status: attendance.StatusNotAttending}))

		err := st.AppendResponse(ctx, "e1", attendance.Response{UserID: "u1", Name: "Ayla", Status: attendance.StatusNotAttending})
		assert.ErrorIs(t, err, attendance.ErrConflict)

		err = st.AppendResponse(ctx, "missing", attendance.Response{UserID: "u1", Status: attendance.StatusAttending})
		assert.ErrorIs(t, err, attendance.ErrNotFound)

		got, err := st.FindByID(ctx, "e1")
		require.NoError(t, err)
		require.Len(t, got.Responses, 2)
		assert.Equal(t, "u1", got.Responses[0].UserID)
		assert.Equal(t, 1, got.AttendingCount)
		assert.Equal(t, 1, got.AbsentCount)
		assert.False(t, got.Drifted())
	})

	t.Run("reason and switch", func(t *testing.T) {
		require.NoError(t, st.SetReason(ctx, "e1", "u2", "work"))
		assert.ErrorIs(t, st.SetReason(ctx, "e1", "u1", "nope"), attendance.ErrConflict)

		require.NoError(t, st.SwitchStatus(ctx, "e1", "u2", attendance.StatusNotAttending, attendance.StatusAttending, "Bram B"))
		err := st.SwitchStatus(ctx, "e1", "u2", attendance.StatusNotAttending, attendance.StatusAttending, "Bram B")
		assert.ErrorIs(t, err, attendance.ErrConflict)

		got, err := st.FindByID(ctx, "e1")
		require.NoError(t, err)
		r := got.Responses[got.Find("u2")]
		assert.Equal(t, attendance.StatusAttending, r.Status)
		assert.Equal(t, "Bram B", r.Name)
		assert.Empty(t, r.Reason, "switching to attending clears the reason")
		assert.Equal(t, 2, got.AttendingCount)
		assert.Equal(t, 0, got.AbsentCount)
	})

	t.Run("sync overwrites", func(t *testing.T) {
		responses := []attendance.Response{
			{UserID: "u3", Name: "Cleo", Status: attendance.StatusNotAttending, Reason: attendance.NoReasonProvided},
			{UserID: "u1", Name: "Ayla", Status: attendance.StatusAttending},
		}
		require.NoError(t, st.SyncResponses(ctx, "e1", responses, 1, 1))

		got, err := st.FindByID(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, responses, got.Responses)
		assert.Equal(t, 1, got.AttendingCount)

		assert.ErrorIs(t, st.SyncResponses(ctx, "missing", nil, 0, 0), attendance.ErrNotFound)
	})

	t.Run("active window", func(t *testing.T) {
		later := sampleEvent("e3", "Raid")
		later.Details.DateTime = deadline.Add(24 * time.Hour)
		later.Details.Date = "15/03/2026"
		require.NoError(t, st.Insert(ctx, later))

		active, err := st.FindActive(ctx, deadline.Add(-time.Minute))
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "e1", active[0].ID)
		assert.Len(t, active[0].Responses, 2)

		active, err = st.FindActive(ctx, deadline)
		require.NoError(t, err)
		require.Len(t, active, 1, "an event whose deadline equals now is not active")
		assert.Equal(t, "e3", active[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, st.Delete(ctx, "e3"))
		assert.ErrorIs(t, st.Delete(ctx, "e3"), attendance.ErrNotFound)
		_, err := st.FindByID(ctx, "e3")
		assert.ErrorIs(t, err, attendance.ErrNotFound)
	})
}
