package sources_test

import (
	"testing"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := sources.NewRegistry()
	require.NoError(t, r.Register(model.WarningLandslide, sources.NewLandslide))

	f, err := r.Get(model.WarningLandslide)
	require.NoError(t, err)

	src, err := f(sources.Params{CountyID: "46"})
	require.NoError(t, err)
	assert.Equal(t, "landslide", src.Name())
}

func TestRegistry_DuplicateRegister(t *testing.T) {
	r := sources.NewRegistry()
	require.NoError(t, r.Register(model.WarningFlood, sources.NewFlood))

	err := r.Register(model.WarningFlood, sources.NewFlood)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := sources.NewRegistry()
	_, err := r.Get("tsunami")
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
	assert.Contains(t, err.Error(), "not found")
}

func TestDefaultRegistry_List(t *testing.T) {
	types := sources.DefaultRegistry().List()
	assert.Equal(t, []model.WarningType{
		model.WarningAvalanche, model.WarningFlood, model.WarningLandslide, model.WarningWeather,
	}, types)
}

func TestRegistry_NewExpandsBoth(t *testing.T) {
	srcs, err := sources.DefaultRegistry().New(model.WarningBoth, sources.Params{CountyID: "46"})
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.Equal(t, model.WarningLandslide, srcs[0].WarningType())
	assert.Equal(t, model.WarningFlood, srcs[1].WarningType())
}

func TestRegistry_NewPropagatesConfigErrors(t *testing.T) {
	_, err := sources.DefaultRegistry().New(model.WarningFlood, sources.Params{})
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
}

func TestCounties(t *testing.T) {
	cs, err := sources.LoadCounties()
	require.NoError(t, err)
	assert.Len(t, cs, 15)
	assert.Equal(t, "03", cs[0].ID)

	name, ok := sources.CountyName("46")
	assert.True(t, ok)
	assert.Equal(t, "Vestland", name)

	_, ok = sources.CountyName("12")
	assert.False(t, ok)
}

func TestLoadCountiesFromBytes_Invalid(t *testing.T) {
	_, err := sources.LoadCountiesFromBytes([]byte("counties: []"))
	assert.Error(t, err)

	_, err = sources.LoadCountiesFromBytes([]byte("counties:\n  - {id: '46', name: A}\n  - {id: '46', name: B}\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestTestAlert(t *testing.T) {
	now := time.Date(2025, 12, 19, 12, 0, 0, 0, time.UTC)

	for _, wt := range []model.WarningType{model.WarningLandslide, model.WarningFlood, model.WarningAvalanche, model.WarningWeather, model.WarningBoth} {
		a := sources.TestAlert(wt, "en", now)
		assert.Equal(t, sources.TestAlertID, a.ID, wt)
		assert.Equal(t, model.LevelOrange, a.Level, wt)
		assert.NoError(t, a.Validate(), wt)
		assert.Equal(t, model.StatusOngoing, a.StatusAt(now), wt)
		assert.NotEmpty(t, a.URL, wt)
		assert.NotEmpty(t, a.Icon, wt)
	}

	weather := sources.TestAlert(model.WarningWeather, "en", now)
	assert.Equal(t, []string{"Vestland, Bergen"}, weather.Areas)
	assert.Equal(t, "icon-warning-wind-orange", weather.Icon)

	landslide := sources.TestAlert(model.WarningLandslide, "no", now)
	assert.Equal(t, []string{"Testville"}, landslide.Municipalities)
	assert.Equal(t, "https://www.varsom.no/flom-og-jordskred/varsling/varselid/999999", landslide.URL)

	assert.Equal(t, model.WarningLandslide, sources.TestAlert(model.WarningBoth, "en", now).WarningType)
}
