package garmin

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitglue/ledger/pkg/domain/activity"
	httputil "github.com/fitglue/ledger/pkg/infrastructure/http"
)

func newTestClient(t *testing.T, mux *http.ServeMux, displayName string) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client(), displayName)
}

func TestFetchRecentActivities(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/activitylist-service/activities/search/activities", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("start"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"startTimeLocal":"2024-05-01 07:00:00","activityName":"Morning Ride","activityType":{"typeKey":"road_biking"},
			 "distance":25000.5,"duration":"3600","averageHR":140,"maxHR":171,"calories":650,"elevationGain":210.4,"weight":72500},
			{"startTimeLocal":"2024-04-30 18:00:00","activityName":"Broken","distance":"lots","duration":null}
		]`))
	})
	c := newTestClient(t, mux, "runner")

	got, err := c.FetchRecentActivities(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	ride := got[0]
	assert.Equal(t, "Morning Ride", ride.Name)
	assert.Equal(t, "road_biking", ride.Kind)
	assert.Equal(t, 25000.5, ride.Distance)
	assert.Equal(t, 3600.0, ride.Duration)
	require.NotNil(t, ride.Weight)
	assert.Equal(t, 72500.0, *ride.Weight)

	broken := got[1]
	assert.Equal(t, 0.0, broken.Duration)
	_, err = activity.Extract(broken)
	assert.Error(t, err)
}

func TestFetchRecentActivities_UndecodableRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/activitylist-service/activities/search/activities", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"startTimeLocal":"2024-05-01 07:00:00","activityName":"Odd","activityType":"running"}]`))
	})
	c := newTestClient(t, mux, "runner")

	got, err := c.FetchRecentActivities(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Odd", got[0].Name)
	assert.Equal(t, "2024-05-01 07:00:00", got[0].StartTimeLocal)
	assert.NotEmpty(t, got[0].DecodeError)
}

func TestFetchRecentActivities_HTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/activitylist-service/activities/search/activities", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	})
	c := newTestClient(t, mux, "runner")

	_, err := c.FetchRecentActivities(context.Background(), 0, 5)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httputil.StatusCode(err))
}

func TestSideChannels(t *testing.T) {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/userprofile-service/socialProfile", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"displayName":"runner-42"}`))
	})
	mux.HandleFunc("/usersummary-service/usersummary/daily/runner-42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-05-01", r.URL.Query().Get("calendarDate"))
		_, _ = w.Write([]byte(`{"restingHeartRate":47}`))
	})
	mux.HandleFunc("/weight-service/weight/dateRange", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-04-25", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2024-05-01", r.URL.Query().Get("endDate"))
		_, _ = w.Write([]byte(`{"dateWeightList":[
			{"date":1714377600000,"calendarDate":"2024-04-29","weight":72500.0},
			{"calendarDate":"2024-04-27","weight":"73.1"},
			{"calendarDate":"2024-04-26","weight":null}
		]}`))
	})
	mux.HandleFunc("/hrv-service/hrv/2024-05-01", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hrvSummary":{"lastNightAvg":58}}`))
	})
	mux.HandleFunc("/wellness-service/wellness/dailySleepData/runner-42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dailySleepDTO":{"sleepTimeSeconds":null}}`))
	})
	c := newTestClient(t, mux, "")
	ctx := context.Background()

	stats, err := c.FetchDailyStats(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, stats.RestingHeartRate)
	assert.Equal(t, 47.0, *stats.RestingHeartRate)

	samples, err := c.FetchBodyComposition(ctx, date.AddDate(0, 0, -6), date)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, time.Date(2024, 4, 29, 8, 0, 0, 0, time.UTC), samples[0].Date)
	assert.Equal(t, 72500.0, samples[0].Value)
	assert.Equal(t, 73.1, samples[1].Value)

	hrv, err := c.FetchHRV(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, hrv.LastNightAvg)
	assert.Equal(t, 58.0, *hrv.LastNightAvg)

	sleep, err := c.FetchSleep(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, sleep.TotalSleepSeconds)
}

func TestFetchHRV_NoContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/hrv-service/hrv/2024-05-01", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux, "runner")

	hrv, err := c.FetchHRV(context.Background(), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, hrv.LastNightAvg)
}

func TestFlexFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		invalid bool
	}{
		{`12.5`, 12.5, false},
		{`"12.5"`, 12.5, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"abc"`, 0, true},
	}
	for _, tt := range tests {
		var f flexFloat
		require.NoError(t, f.UnmarshalJSON([]byte(tt.in)), tt.in)
		if tt.invalid {
			assert.True(t, math.IsNaN(float64(f)), tt.in)
			continue
		}
		assert.Equal(t, tt.want, float64(f), tt.in)
	}
}
