package sources_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
	"github.com/ogulcanaydogan/norway-alerts/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const landslideBody = `[
  {"Id": 101, "MasterId": 5001, "ActivityLevel": "2", "DangerTypeName": "Jordskred",
   "MainText": "Yellow landslide", "WarningText": "w", "AdviceText": "a", "ConsequenceText": "c",
   "ValidFrom": "2025-03-01T07:00:00", "ValidTo": "2025-03-02T06:59:00",
   "DangerIncreaseDateTime": "2025-03-01T12:00:00", "DangerDecreaseDateTime": "",
   "MunicipalityList": [{"Id": "4601", "Name": "Bergen", "CountyId": "46", "CountyName": "Vestland"},
                        {"Id": "4621", "Name": "Voss", "CountyId": "46", "CountyName": "Vestland"}]},
  {"Id": "102", "MasterId": "0", "ActivityLevel": 3, "DangerTypeName": "Jordskred",
   "MainText": "Orange landslide",
   "ValidFrom": "2025-03-01T07:00:00", "ValidTo": "2025-03-02T06:59:00",
   "MunicipalityList": [{"Id": "4640", "Name": "Sogndal", "CountyId": "46", "CountyName": "Vestland"}]},
  {"Id": 103, "ActivityLevel": "9", "ValidFrom": "2025-03-01T07:00:00", "ValidTo": "2025-03-02T06:59:00"},
  {"Id": 104, "ActivityLevel": "2", "ValidFrom": "2025-03-03T07:00:00", "ValidTo": "2025-03-02T06:59:00"},
  {"Id": 105, "ActivityLevel": "2", "ValidFrom": "not a time", "ValidTo": "2025-03-02T06:59:00"},
  {"Id": 101, "ActivityLevel": "4", "ValidFrom": "2025-03-01T07:00:00", "ValidTo": "2025-03-02T06:59:00"}
]`

func newJSONServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLandslide_Fetch(t *testing.T) {
	var gotAgent, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		assert.Equal(t, "/Warning/County/46/2", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(landslideBody))
	}))
	defer srv.Close()

	src, err := sources.NewLandslide(sources.Params{CountyID: "46", BaseURL: srv.URL, UserAgent: sources.UserAgent("1.2.3")})
	require.NoError(t, err)
	assert.Equal(t, "landslide", src.Name())
	assert.Equal(t, model.WarningLandslide, src.WarningType())

	alerts, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	assert.Contains(t, gotAgent, "norway-alerts/1.2.3")
	assert.Equal(t, "application/json", gotAccept)

	first := alerts[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "5001", first.MasterID)
	assert.Equal(t, model.LevelYellow, first.Level)
	assert.Equal(t, "yellow", first.LevelName)
	assert.Equal(t, []string{"Bergen", "Voss"}, first.Municipalities)
	assert.Equal(t, []string{"Vestland"}, first.Counties)
	assert.Equal(t, "https://www.varsom.no/en/flood-and-landslide-warning-service/forecastid/5001", first.URL)
	assert.Equal(t, "icon-warning-landslide-yellow", first.Icon)
	require.NotNil(t, first.DangerIncreases)
	assert.Nil(t, first.DangerDecreases)
	assert.Equal(t, 6, first.ValidFrom.UTC().Hour())

	second := alerts[1]
	assert.Equal(t, "102", second.ID)
	assert.Empty(t, second.MasterID)
	assert.Equal(t, model.LevelOrange, second.Level)
	assert.Equal(t, "https://www.varsom.no/en/flood-and-landslide-warning-service/forecastid/102", second.URL)
}

func TestFlood_NorwegianURL(t *testing.T) {
	srv := newJSONServer(t, map[string]string{"/Warning/County/46/1": landslideBody})

	src, err := sources.NewFlood(sources.Params{CountyID: "46", Lang: "no", BaseURL: srv.URL})
	require.NoError(t, err)

	alerts, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	assert.Equal(t, model.WarningFlood, alerts[0].WarningType)
	assert.Equal(t, "https://www.varsom.no/flom-og-jordskred/varsling/varselid/5001", alerts[0].URL)
}

func TestCountySource_RequiresCounty(t *testing.T) {
	_, err := sources.NewLandslide(sources.Params{})
	assert.ErrorIs(t, err, model.ErrConfigurationInvalid)
}

func TestCountySource_EmptyList(t *testing.T) {
	srv := newJSONServer(t, map[string]string{"/Warning/County/46/2": `[]`})

	src, err := sources.NewLandslide(sources.Params{CountyID: "46", BaseURL: srv.URL})
	require.NoError(t, err)

	alerts, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestCountySource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want: model.ErrUpstreamUnavailable,
		},
		{
			name: "html response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html></html>"))
			},
			want: model.ErrMalformedResponse,
		},
		{
			name: "broken json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`[{"Id": `))
			},
			want: model.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			src, err := sources.NewLandslide(sources.Params{CountyID: "46", BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = src.Fetch(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var se *model.SourceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "landslide", se.Source)
		})
	}
}

func TestCountySource_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	src, err := sources.NewLandslide(sources.Params{
		CountyID:   "46",
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Timeout: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	assert.ErrorIs(t, err, model.ErrUpstreamUnavailable)
}
