// Package garmin is a client for the Garmin Connect endpoints the ledger reads.
package garmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	shared "github.com/fitglue/ledger/pkg"
	"github.com/fitglue/ledger/pkg/domain/activity"
	httputil "github.com/fitglue/ledger/pkg/infrastructure/http"
)

// DefaultBaseURL is the Garmin Connect API host.
const DefaultBaseURL = "https://connectapi.garmin.com"

const dateLayout = "2006-01-02"

// Client implements shared.ActivitySource against Garmin Connect. The HTTP
// client is expected to authenticate requests.
type Client struct {
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	displayName string
}

var _ shared.ActivitySource = (*Client)(nil)

// NewClient creates a client. An empty displayName is resolved from the
// account's social profile on first use.
func NewClient(baseURL string, client *http.Client, displayName string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		client:      client,
		displayName: displayName,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode >= 400 {
		return httputil.WrapResponseError(resp, "GET "+path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// DisplayName returns the account display name used in per-user endpoints.
func (c *Client) DisplayName(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayName != "" {
		return c.displayName, nil
	}

	var profile socialProfileDTO
	if err := c.getJSON(ctx, "/userprofile-service/socialProfile", nil, &profile); err != nil {
		return "", fmt.Errorf("resolve display name: %w", err)
	}
	if profile.DisplayName == "" {
		return "", fmt.Errorf("resolve display name: profile has no display name")
	}
	c.displayName = profile.DisplayName
	return c.displayName, nil
}

// FetchRecentActivities returns up to limit activities, most recent first.
func (c *Client) FetchRecentActivities(ctx context.Context, offset, limit int) ([]activity.RawActivity, error) {
	query := url.Values{}
	query.Set("start", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))

	var items []json.RawMessage
	if err := c.getJSON(ctx, "/activitylist-service/activities/search/activities", query, &items); err != nil {
		return nil, err
	}

	out := make([]activity.RawActivity, 0, len(items))
	for _, item := range items {
		out = append(out, decodeActivity(item))
	}
	return out, nil
}

func decodeActivity(item json.RawMessage) activity.RawActivity {
	var dto activityDTO
	if err := json.Unmarshal(item, &dto); err != nil {
		var header activityHeader
		_ = json.Unmarshal(item, &header)
		return activity.RawActivity{
			StartTimeLocal: toString(header.StartTimeLocal),
			Name:           toString(header.ActivityName),
			DecodeError:    err.Error(),
		}
	}

	raw := activity.RawActivity{
		StartTimeLocal: dto.StartTimeLocal,
		Name:           dto.ActivityName,
		Kind:           dto.ActivityType.TypeKey,
		Distance:       float64(dto.Distance),
		Duration:       float64(dto.Duration),
		AvgHR:          float64(dto.AverageHR),
		MaxHR:          float64(dto.MaxHR),
		Calories:       float64(dto.Calories),
		ElevationGain:  float64(dto.ElevationGain),
	}
	if w := floatPtr(dto.Weight); w != nil && *w > 0 {
		raw.Weight = w
	}
	return raw
}

// FetchDailyStats returns the day's aggregate statistics.
func (c *Client) FetchDailyStats(ctx context.Context, date time.Time) (*shared.DailyStats, error) {
	name, err := c.DisplayName(ctx)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("calendarDate", date.Format(dateLayout))

	var dto dailySummaryDTO
	if err := c.getJSON(ctx, "/usersummary-service/usersummary/daily/"+url.PathEscape(name), query, &dto); err != nil {
		return nil, err
	}
	return &shared.DailyStats{RestingHeartRate: floatPtr(dto.RestingHeartRate)}, nil
}

// FetchBodyComposition returns the weigh-ins between start and end inclusive.
func (c *Client) FetchBodyComposition(ctx context.Context, start, end time.Time) ([]shared.WeightSample, error) {
	query := url.Values{}
	query.Set("startDate", start.Format(dateLayout))
	query.Set("endDate", end.Format(dateLayout))

	var dto weightRangeDTO
	if err := c.getJSON(ctx, "/weight-service/weight/dateRange", query, &dto); err != nil {
		return nil, err
	}

	samples := make([]shared.WeightSample, 0, len(dto.DateWeightList))
	for _, w := range dto.DateWeightList {
		value := floatPtr(w.Weight)
		if value == nil {
			continue
		}
		var when time.Time
		switch {
		case w.Date != nil && *w.Date > 0:
			// Local wall-clock milliseconds; kept as UTC like the activity dates.
			when = time.UnixMilli(*w.Date).UTC()
		case w.CalendarDate != "":
			t, err := time.Parse(dateLayout, w.CalendarDate)
			if err != nil {
				continue
			}
			when = t
		default:
			continue
		}
		samples = append(samples, shared.WeightSample{Date: when, Value: *value})
	}
	return samples, nil
}

// FetchHRV returns the nightly HRV summary. A day without a reading returns
// a summary with a nil average.
func (c *Client) FetchHRV(ctx context.Context, date time.Time) (*shared.HRVSummary, error) {
	var dto hrvDTO
	if err := c.getJSON(ctx, "/hrv-service/hrv/"+date.Format(dateLayout), nil, &dto); err != nil {
		return nil, err
	}
	out := &shared.HRVSummary{}
	if dto.HRVSummary != nil {
		out.LastNightAvg = floatPtr(dto.HRVSummary.LastNightAvg)
	}
	return out, nil
}

// FetchSleep returns the sleep summary for the night ending on date.
func (c *Client) FetchSleep(ctx context.Context, date time.Time) (*shared.SleepSummary, error) {
	name, err := c.DisplayName(ctx)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("date", date.Format(dateLayout))

	var dto sleepDTO
	if err := c.getJSON(ctx, "/wellness-service/wellness/dailySleepData/"+url.PathEscape(name), query, &dto); err != nil {
		return nil, err
	}
	out := &shared.SleepSummary{}
	if dto.DailySleepDTO != nil {
		out.TotalSleepSeconds = floatPtr(dto.DailySleepDTO.SleepTimeSeconds)
	}
	return out, nil
}
