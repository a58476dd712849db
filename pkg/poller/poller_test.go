package poller_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/notify"
	"github.com/ogulcanaydogan/norway-alerts/pkg/poller"
	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
	"github.com/ogulcanaydogan/norway-alerts/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource returns the queued responses in order, repeating the last one.
type fakeSource struct {
	mu        sync.Mutex
	name      string
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	alerts []model.Alert
	err    error
}

func (f *fakeSource) Name() string                   { return f.name }
func (f *fakeSource) WarningType() model.WarningType { return model.WarningLandslide }

func (f *fakeSource) Fetch(ctx context.Context) ([]model.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	return f.responses[i].alerts, f.responses[i].err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Send(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func alert(id string, level model.Level, municipalities ...string) model.Alert {
	return model.Alert{
		ID:             id,
		Level:          level,
		LevelName:      level.Color(),
		WarningType:    model.WarningLandslide,
		Municipalities: municipalities,
		Areas:          []string{},
		ValidFrom:      testNow.Add(-time.Hour),
		ValidTo:        testNow.Add(23 * time.Hour),
		MainText:       "Moderate landslide danger",
		URL:            "https://www.varsom.no/en/landslide/" + id,
	}
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func instance() poller.Instance {
	return poller.Instance{
		ID:          "vestland",
		Name:        "Vestland landslide",
		WarningType: model.WarningLandslide,
		Lang:        "en",
		Threshold:   notify.DefaultThreshold,
	}
}

func TestPoller_SensorsBeforeFirstRefresh(t *testing.T) {
	src := &fakeSource{name: "landslide", responses: []fakeResponse{{}}}
	p := poller.New(instance(), []sources.Source{src}, nil, nil, discardLogger()).WithClock(func() time.Time { return testNow })

	sensors, err := p.Sensors()
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.False(t, sensors[0].Available)
	assert.Nil(t, sensors[0].Attributes)
	assert.Nil(t, sensors[0].LastUpdated)
}

func TestPoller_RefreshComputesSensors(t *testing.T) {
	inst := instance()
	inst.Filter = "Bergen"
	src := &fakeSource{name: "landslide", responses: []fakeResponse{{alerts: []model.Alert{
		alert("1", model.LevelYellow, "Bergen", "Voss"),
		alert("2", model.LevelOrange, "Voss"),
		alert("3", model.LevelGreen, "Bergen"),
	}}}}
	p := poller.New(inst, []sources.Source{src}, nil, nil, discardLogger()).WithClock(func() time.Time { return testNow })

	require.NoError(t, p.Refresh(context.Background()))

	sensors, err := p.Sensors()
	require.NoError(t, err)
	require.Len(t, sensors, 2)

	main := sensors[0]
	assert.Equal(t, "vestland", main.ID)
	assert.True(t, main.Available)
	assert.Equal(t, 2, main.State)
	require.NotNil(t, main.Attributes)
	assert.Equal(t, "orange", main.Attributes.HighestLevel)
	assert.True(t, main.LastUpdated.Equal(testNow))

	area := sensors[1]
	assert.Equal(t, "vestland"+poller.MyAreaSuffix, area.ID)
	assert.Equal(t, 1, area.State)
	assert.Equal(t, "yellow", area.Attributes.HighestLevel)
}

func TestPoller_KeepsLastKnownGoodResult(t *testing.T) {
	upstream := model.NewSourceError("landslide", model.ErrUpstreamUnavailable, errors.New("status 503"))
	src := &fakeSource{name: "landslide", responses: []fakeResponse{
		{alerts: []model.Alert{alert("1", model.LevelOrange, "Bergen")}},
		{err: upstream},
	}}
	store := newTestStore(t)
	p := poller.New(instance(), []sources.Source{src}, store, nil, discardLogger()).WithClock(func() time.Time { return testNow })
	ctx := context.Background()

	require.NoError(t, p.Refresh(ctx))
	err := p.Refresh(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)

	sensors, err := p.Sensors()
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.True(t, sensors[0].Available)
	assert.Equal(t, 1, sensors[0].State)
	assert.Contains(t, sensors[0].LastError, "status 503")

	snap, err := store.LatestSnapshot(ctx, "vestland")
	require.NoError(t, err)
	assert.Len(t, snap.Alerts, 1)
}

func TestPoller_SuccessClearsLastError(t *testing.T) {
	src := &fakeSource{name: "landslide", responses: []fakeResponse{
		{err: model.NewSourceError("landslide", model.ErrMalformedResponse, errors.New("bad json"))},
		{alerts: []model.Alert{}},
	}}
	p := poller.New(instance(), []sources.Source{src}, nil, nil, discardLogger()).WithClock(func() time.Time { return testNow })
	ctx := context.Background()

	require.Error(t, p.Refresh(ctx))
	sensors, err := p.Sensors()
	require.NoError(t, err)
	assert.False(t, sensors[0].Available)
	assert.NotEmpty(t, sensors[0].LastError)

	require.NoError(t, p.Refresh(ctx))
	sensors, err = p.Sensors()
	require.NoError(t, err)
	assert.True(t, sensors[0].Available)
	assert.Empty(t, sensors[0].LastError)
	assert.Equal(t, 0, sensors[0].State)
}

func TestPoller_AnySourceFailureFailsCycle(t *testing.T) {
	inst := instance()
	inst.WarningType = model.WarningBoth
	landslide := &fakeSource{name: "landslide", responses: []fakeResponse{{alerts: []model.Alert{alert("1", model.LevelOrange)}}}}
	flood := &fakeSource{name: "flood", responses: []fakeResponse{{err: model.NewSourceError("flood", model.ErrUpstreamUnavailable, errors.New("timeout"))}}}
	p := poller.New(inst, []sources.Source{landslide, flood}, nil, nil, discardLogger()).WithClock(func() time.Time { return testNow })

	require.Error(t, p.Refresh(context.Background()))
	sensors, err := p.Sensors()
	require.NoError(t, err)
	assert.False(t, sensors[0].Available)
}

func TestPoller_TestModePrependsTestAlert(t *testing.T) {
	inst := instance()
	inst.TestMode = true
	src := &fakeSource{name: "landslide", responses: []fakeResponse{{alerts: []model.Alert{alert("1", model.LevelYellow)}}}}
	p := poller.New(inst, []sources.Source{src}, nil, nil, discardLogger()).WithClock(func() time.Time { return testNow })

	require.NoError(t, p.Refresh(context.Background()))
	sensors, err := p.Sensors()
	require.NoError(t, err)
	require.Len(t, sensors[0].Attributes.Alerts, 2)
	assert.Equal(t, sources.TestAlertID, sensors[0].Attributes.Alerts[0].ID)
	assert.Equal(t, "orange", sensors[0].Attributes.HighestLevel)
}

func TestPoller_NotificationsAcrossRestart(t *testing.T) {
	inst := instance()
	inst.Notifications = true
	store := newTestStore(t)
	rec := &recordingNotifier{}
	ctx := context.Background()
	clock := func() time.Time { return testNow }

	first := &fakeSource{name: "landslide", responses: []fakeResponse{{alerts: []model.Alert{alert("1", model.LevelYellow, "Bergen")}}}}
	p := poller.New(inst, []sources.Source{first}, store, []notify.Notifier{rec}, discardLogger()).WithClock(clock)
	require.NoError(t, p.Restore(ctx))
	require.NoError(t, p.Refresh(ctx))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, model.NotificationNew, rec.sent[0].Kind)

	// A new poller over the same store must not re-announce alert 1.
	second := &fakeSource{name: "landslide", responses: []fakeResponse{
		{alerts: []model.Alert{alert("1", model.LevelOrange, "Bergen")}},
		{alerts: []model.Alert{}},
	}}
	p = poller.New(inst, []sources.Source{second}, store, []notify.Notifier{rec}, discardLogger()).WithClock(clock)
	require.NoError(t, p.Restore(ctx))

	sensors, err := p.Sensors()
	require.NoError(t, err)
	assert.True(t, sensors[0].Available, "snapshot restored")

	require.NoError(t, p.Refresh(ctx))
	require.Len(t, rec.sent, 2)
	assert.Equal(t, model.NotificationUpgraded, rec.sent[1].Kind)

	require.NoError(t, p.Refresh(ctx))
	require.Len(t, rec.sent, 3)
	assert.Equal(t, model.NotificationResolved, rec.sent[2].Kind)

	history, err := store.QueryNotifications(ctx, model.NotificationFilter{InstanceID: "vestland"})
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestPoller_RefreshHonoursTimeout(t *testing.T) {
	src := &blockingSource{}
	p := poller.New(instance(), []sources.Source{src}, nil, nil, discardLogger()).
		WithClock(func() time.Time { return testNow }).
		WithTimeout(20 * time.Millisecond)

	err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}

type blockingSource struct{}

func (blockingSource) Name() string                   { return "landslide" }
func (blockingSource) WarningType() model.WarningType { return model.WarningLandslide }

func (blockingSource) Fetch(ctx context.Context) ([]model.Alert, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPoller_NotifiesEscalationUnderSharedMaster(t *testing.T) {
	inst := instance()
	inst.Notifications = true
	rec := &recordingNotifier{}

	day1 := alert("a", model.LevelYellow, "Bergen")
	day1.MasterID = "m1"
	day2 := alert("b", model.LevelOrange, "Bergen")
	day2.MasterID = "m1"
	day2.ValidFrom = day1.ValidTo
	day2.ValidTo = day1.ValidTo.Add(24 * time.Hour)

	src := &fakeSource{name: "landslide", responses: []fakeResponse{
		{alerts: []model.Alert{day1}},
		{alerts: []model.Alert{day1, day2}},
	}}
	p := poller.New(inst, []sources.Source{src}, nil, []notify.Notifier{rec}, discardLogger()).
		WithClock(func() time.Time { return testNow })

	require.NoError(t, p.Refresh(context.Background()))
	require.NoError(t, p.Refresh(context.Background()))

	require.Len(t, rec.sent, 2)
	assert.Equal(t, "b", rec.sent[1].AlertID)
	assert.Equal(t, model.NotificationNew, rec.sent[1].Kind)
	assert.Equal(t, model.LevelOrange, rec.sent[1].Level)

	sensors, err := p.Sensors()
	require.NoError(t, err)
	assert.Equal(t, 3, sensors[0].Attributes.HighestLevelNumeric)
}

// lateSource succeeds only once its context has expired.
type lateSource struct{ alerts []model.Alert }

func (lateSource) Name() string                   { return "landslide" }
func (lateSource) WarningType() model.WarningType { return model.WarningLandslide }

func (s lateSource) Fetch(ctx context.Context) ([]model.Alert, error) {
	<-ctx.Done()
	return s.alerts, nil
}

func TestPoller_PersistsAfterSlowFetch(t *testing.T) {
	store := newTestStore(t)
	src := lateSource{alerts: []model.Alert{alert("1", model.LevelYellow, "Bergen")}}
	p := poller.New(instance(), []sources.Source{src}, store, nil, discardLogger()).
		WithClock(func() time.Time { return testNow }).
		WithTimeout(20 * time.Millisecond)

	require.NoError(t, p.Refresh(context.Background()))

	snap, err := store.LatestSnapshot(context.Background(), "vestland")
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, "1", snap.Alerts[0].ID)
}

// gateSource blocks until release is closed.
type gateSource struct {
	started chan struct{}
	release chan struct{}
}

func (gateSource) Name() string                   { return "landslide" }
func (gateSource) WarningType() model.WarningType { return model.WarningLandslide }

func (g gateSource) Fetch(ctx context.Context) ([]model.Alert, error) {
	close(g.started)
	select {
	case <-g.release:
		return []model.Alert{alert("1", model.LevelYellow, "Bergen")}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestPoller_RestoreWaitsForRunningCycle(t *testing.T) {
	store := newTestStore(t)
	src := gateSource{started: make(chan struct{}), release: make(chan struct{})}
	p := poller.New(instance(), []sources.Source{src}, store, nil, discardLogger()).
		WithClock(func() time.Time { return testNow })

	refreshed := make(chan error, 1)
	go func() { refreshed <- p.Refresh(context.Background()) }()
	<-src.started

	restored := make(chan error, 1)
	go func() { restored <- p.Restore(context.Background()) }()

	assert.Never(t, func() bool { return len(restored) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	close(src.release)

	require.NoError(t, <-refreshed)
	require.NoError(t, <-restored)

	sensors, err := p.Sensors()
	require.NoError(t, err)
	assert.True(t, sensors[0].Available)
	assert.Equal(t, 1, sensors[0].State)
}
