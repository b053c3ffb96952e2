package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliwatt/intelliwatt/internal/buckets"
	"github.com/intelliwatt/intelliwatt/internal/plancost"
	"github.com/intelliwatt/intelliwatt/internal/storage"
	"github.com/intelliwatt/intelliwatt/internal/usage"
	"github.com/intelliwatt/intelliwatt/internal/validate"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemoryStorage) {
	t.Helper()
	st := storage.NewMemory()
	cal := usage.MustCalendar(usage.DefaultTimeZone)
	agg := usage.NewAggregator(st, st, cal, usage.AggregatorConfig{})
	est := usage.NewEstimateBuilder(st, st, cal, usage.EstimateConfig{MonthsCount: 3})
	validator := validate.NewValidator(plancost.NewPricer(nil), validate.NewStaticTariffs(), validate.Config{})
	val := validate.NewService(validator, st, nil)

	srv := NewServer(st, agg, est, val, cal)
	ts := httptest.NewServer(srv.NewMux())
	t.Cleanup(ts.Close)
	return ts, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHomeReadingsAggregateEstimateFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	// Register a home.
	resp := postJSON(t, ts.URL+"/api/v1/homes", map[string]string{
		"esiid": "10443720000000001",
		"label": "test home",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var home storage.Home
	decodeInto(t, resp, &home)
	require.NotEmpty(t, home.ID)

	// Push a day of readings.
	cal := usage.MustCalendar(usage.DefaultTimeZone)
	type reading struct {
		Timestamp time.Time `json:"timestamp"`
		Kwh       float64   `json:"kwh"`
	}
	var body []reading
	for hour := 0; hour < 24; hour++ {
		body = append(body, reading{
			Timestamp: time.Date(2025, 6, 2, hour, 0, 0, 0, cal.Location()),
			Kwh:       1,
		})
	}
	resp = postJSON(t, fmt.Sprintf("%s/api/v1/homes/%s/readings", ts.URL, home.ID), body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var inserted map[string]int
	decodeInto(t, resp, &inserted)
	assert.Equal(t, 24, inserted["inserted"])

	// Aggregate June.
	resp = postJSON(t, fmt.Sprintf("%s/api/v1/homes/%s/aggregate", ts.URL, home.ID), map[string]time.Time{
		"start": time.Date(2025, 6, 1, 0, 0, 0, 0, cal.Location()),
		"end":   time.Date(2025, 7, 1, 0, 0, 0, 0, cal.Location()),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var aggRes usage.AggregateResult
	decodeInto(t, resp, &aggRes)
	assert.Equal(t, 1, aggRes.MonthsProcessed)

	// Estimate with the window ending after that day.
	windowEnd := time.Date(2025, 6, 21, 8, 0, 0, 0, cal.Location()).Format(time.RFC3339)
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/homes/%s/estimate?windowEnd=%s", ts.URL, home.ID, windowEnd))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var est usage.Estimate
	decodeInto(t, resp, &est)
	assert.Len(t, est.YearMonths, 3)
	assert.InDelta(t, 24, est.UsageBucketsByMonth["2025-06"][buckets.TotalKey], 1e-9)
}

func TestHomeValidationErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/homes", map[string]string{"label": "no esiid"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/v1/homes/unknown/aggregate", map[string]string{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestValidationEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	eflText := "Average Monthly Use 500 kWh 1,000 kWh 2,000 kWh\n" +
		"Average Price per kWh 14.5¢ 14.5¢ 14.5¢\n" +
		"Energy Charge: 14.5¢ per kWh\n" +
		"The price above includes TDU delivery charges.\n"

	resp := postJSON(t, ts.URL+"/api/v1/validations", map[string]any{
		"planId":  "bundled",
		"rules":   plancost.PlanRules{PlanID: "bundled", EnergyCentsPerKwh: 14.5, TdspBundled: true},
		"eflText": eflText,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res validate.Result
	decodeInto(t, resp, &res)
	assert.Equal(t, validate.StatusPass, res.Status)

	// The record is queryable through the queue endpoint.
	listResp, err := http.Get(ts.URL + "/api/v1/validations?status=PASS")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var recs []storage.EflValidationRecord
	decodeInto(t, listResp, &recs)
	require.Len(t, recs, 1)
	assert.Equal(t, "bundled", recs[0].PlanID)
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
