package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRange_Contains(t *testing.T) {
	lower := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	upper := lower.Add(time.Hour)
	r := TimeRange{Lower: lower, Upper: &upper}

	assert.True(t, r.Contains(lower))
	assert.True(t, r.Contains(lower.Add(30*time.Minute)))
	assert.False(t, r.Contains(upper))
	assert.False(t, r.Contains(lower.Add(-time.Second)))
}

func TestTimeRange_Contains_Unbounded(t *testing.T) {
	r := TimeRange{Lower: time.Now()}
	assert.True(t, r.Contains(time.Now().Add(365*24*time.Hour)))
}

func TestTimeRange_Empty(t *testing.T) {
	lower := time.Now()
	equal := lower
	before := lower.Add(-time.Minute)

	assert.True(t, TimeRange{Lower: lower, Upper: &equal}.Empty())
	assert.True(t, TimeRange{Lower: lower, Upper: &before}.Empty())
	assert.False(t, TimeRange{Lower: lower}.Empty())
}

func TestRoom_Status(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	scheduled := Room{Time: TimeRange{Lower: future}}
	assert.Equal(t, RoomScheduled, scheduled.Status(now))

	open := Room{Time: TimeRange{Lower: past}}
	assert.Equal(t, RoomOpen, open.Status(now))

	closedUpper := past.Add(30 * time.Minute)
	closed := Room{Time: TimeRange{Lower: past, Upper: &closedUpper}}
	assert.Equal(t, RoomClosed, closed.Status(now))
}

func TestRoom_ValidateInvariants(t *testing.T) {
	base := Room{
		ClassroomID:      uuid.New(),
		Time:             TimeRange{Lower: time.Now()},
		RtcSharingPolicy: PolicyShared,
	}
	require.NoError(t, base.ValidateInvariants())

	noClassroom := base
	noClassroom.ClassroomID = uuid.Nil
	assert.Error(t, noClassroom.ValidateInvariants())

	upper := base.Time.Lower
	emptyTime := base
	emptyTime.Time = TimeRange{Lower: base.Time.Lower, Upper: &upper}
	assert.Error(t, emptyTime.ValidateInvariants())

	backendID := uuid.New()
	noPolicy := base
	noPolicy.RtcSharingPolicy = PolicyNone
	noPolicy.BackendID = &backendID
	assert.Error(t, noPolicy.ValidateInvariants())
}

func TestRoom_BoundClose(t *testing.T) {
	open := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Room{Time: TimeRange{Lower: open}}
	r.BoundClose(2 * time.Hour)
	require.NotNil(t, r.Time.Upper)
	assert.Equal(t, open.Add(2*time.Hour), *r.Time.Upper)
}

func TestRoom_BoundClose_LeavesExistingUpperAlone(t *testing.T) {
	open := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	upper := open.Add(10 * time.Minute)
	r := Room{Time: TimeRange{Lower: open, Upper: &upper}}
	r.BoundClose(2 * time.Hour)
	assert.Equal(t, upper, *r.Time.Upper)
}

func TestRoom_BoundClose_SkipsInfiniteRooms(t *testing.T) {
	open := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Room{Time: TimeRange{Lower: open}, Infinite: true}
	r.BoundClose(2 * time.Hour)
	assert.Nil(t, r.Time.Upper)
}
