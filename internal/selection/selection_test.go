package selection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencan1a/calendarbot/internal/eventmodel"
)

var baseNow = time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)

func mkEvent(t *testing.T, sourceID, subject string, start, end time.Time) eventmodel.Event {
	t.Helper()
	ev, err := eventmodel.NewEvent("evt_"+sourceID, eventmodel.UpstreamRecord{
		SourceID:     sourceID,
		Subject:      subject,
		StartInstant: start,
		EndInstant:   end,
	}, baseNow)
	require.NoError(t, err)
	return ev
}

func TestSelect_S1_UpcomingOverCurrentPriority(t *testing.T) {
	current := mkEvent(t, "a", "Current", baseNow.Add(-time.Hour), baseNow.Add(time.Hour))
	upcoming := mkEvent(t, "b", "Upcoming", baseNow.Add(30*time.Minute), baseNow.Add(90*time.Minute))

	result := Select([]eventmodel.Event{current, upcoming}, baseNow, nil, time.UTC)

	require.NotNil(t, result.Featured)
	assert.Equal(t, "Upcoming", result.Featured.Subject)
	assert.Empty(t, result.CurrentSelected)
	require.Len(t, result.Upcoming, 1)
	assert.Equal(t, "Upcoming", result.Upcoming[0].Subject)
}

func TestSelect_S2_OnlyCurrent(t *testing.T) {
	current := mkEvent(t, "a", "Current", baseNow.Add(-time.Hour), baseNow.Add(time.Hour))

	result := Select([]eventmodel.Event{current}, baseNow, nil, time.UTC)

	require.NotNil(t, result.Featured)
	assert.Equal(t, "Current", result.Featured.Subject)
	require.Len(t, result.CurrentSelected, 1)
	assert.Equal(t, "Current", result.CurrentSelected[0].Subject)
	assert.Empty(t, result.Upcoming)
}

func TestSelect_S3_OnlyUpcomingMultipleOutOfOrder(t *testing.T) {
	later := mkEvent(t, "x", "Later", baseNow.Add(2*time.Hour), baseNow.Add(3*time.Hour))
	earlier := mkEvent(t, "y", "Earlier", baseNow.Add(time.Hour), baseNow.Add(2*time.Hour))

	result := Select([]eventmodel.Event{later, earlier}, baseNow, nil, time.UTC)

	require.NotNil(t, result.Featured)
	assert.Equal(t, "Earlier", result.Featured.Subject)
	require.Len(t, result.Upcoming, 2)
	assert.Equal(t, "Earlier", result.Upcoming[0].Subject)
	assert.Equal(t, "Later", result.Upcoming[1].Subject)
	require.Len(t, result.Later, 1)
	assert.Equal(t, "Later", result.Later[0].Subject)
}

func TestSelect_S4_HiddenEventFilter(t *testing.T) {
	visible := mkEvent(t, "v", "Visible", baseNow.Add(time.Hour), baseNow.Add(2*time.Hour))
	hidden := mkEvent(t, "h", "Hidden", baseNow.Add(30*time.Minute), baseNow.Add(90*time.Minute))

	result := Select([]eventmodel.Event{visible, hidden}, baseNow, map[string]struct{}{"h": {}}, time.UTC)

	require.NotNil(t, result.Featured)
	assert.Equal(t, "Visible", result.Featured.Subject)
	for _, e := range append(append(result.Current, result.Upcoming...), result.Later...) {
		assert.NotEqual(t, "h", e.SourceID)
	}
}

func TestSelect_S5_BackToBack(t *testing.T) {
	// "Ending" finishes exactly at now (end == now, not strictly greater):
	// it classifies as neither current nor upcoming and drops out of both
	// lists. "Starting" begins exactly at now (start <= now < end): under
	// the formal classification rule that makes it current, not upcoming,
	// and the priority rule still features it since upcoming is empty.
	ending := mkEvent(t, "ending", "Ending", baseNow.Add(-time.Hour), baseNow)
	starting := mkEvent(t, "starting", "Starting", baseNow, baseNow.Add(time.Hour))

	result := Select([]eventmodel.Event{ending, starting}, baseNow, nil, time.UTC)

	require.NotNil(t, result.Featured)
	assert.Equal(t, "Starting", result.Featured.Subject)
	assert.Empty(t, result.Upcoming)
	require.Len(t, result.Current, 1)
	assert.Equal(t, "Starting", result.Current[0].Subject)
	require.Len(t, result.CurrentSelected, 1)
	assert.Equal(t, "Starting", result.CurrentSelected[0].Subject)
}

func TestSelect_NoEvents_FeaturedNil(t *testing.T) {
	result := Select(nil, baseNow, nil, time.UTC)
	assert.Nil(t, result.Featured)
	assert.Empty(t, result.CurrentSelected)
}

func TestSelect_TieBreakBySourceIDWhenStartsEqual(t *testing.T) {
	b := mkEvent(t, "b", "B", baseNow.Add(time.Hour), baseNow.Add(2*time.Hour))
	a := mkEvent(t, "a", "A", baseNow.Add(time.Hour), baseNow.Add(2*time.Hour))

	result := Select([]eventmodel.Event{b, a}, baseNow, nil, time.UTC)

	require.Len(t, result.Upcoming, 2)
	assert.Equal(t, "a", result.Upcoming[0].SourceID)
	assert.Equal(t, "b", result.Upcoming[1].SourceID)
}

func TestSelect_Deterministic(t *testing.T) {
	current := mkEvent(t, "a", "Current", baseNow.Add(-time.Hour), baseNow.Add(time.Hour))
	upcoming := mkEvent(t, "b", "Upcoming", baseNow.Add(30*time.Minute), baseNow.Add(90*time.Minute))
	events := []eventmodel.Event{current, upcoming}

	r1 := Select(events, baseNow, nil, time.UTC)
	r2 := Select(events, baseNow, nil, time.UTC)

	assert.Equal(t, r1.Featured.SourceID, r2.Featured.SourceID)
	assert.Equal(t, len(r1.Upcoming), len(r2.Upcoming))
	assert.Equal(t, len(r1.Current), len(r2.Current))
}
