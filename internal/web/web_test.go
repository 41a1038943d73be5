package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/config"
	"daycal/internal/days"
	"daycal/internal/ics"
	appLog "daycal/internal/log"
	"daycal/internal/model"
)

func newTestServer(t *testing.T, rules []model.Rule, lookup ics.Lookup) *httptest.Server {
	cfg := config.DefaultConfig()
	cfg.StartYear, cfg.EndYear = 2024, 2025
	cfg.Lookup.Offline = true
	srv := httptest.NewServer(NewServer(cfg, rules, lookup).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, days.Default(), nil)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDays(t *testing.T) {
	srv := newTestServer(t, days.Default(), nil)

	var got daysResponse
	status := getJSON(t, srv.URL+"/api/days?year=2024&month=8", &got)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2024, got.Year)
	assert.Equal(t, 8, got.Month)
	require.Len(t, got.Days, 2)
	assert.Equal(t, "International Vulture Awareness Day", got.Days[0].Name)
	assert.Equal(t, 7, got.Days[0].Day)
	assert.Equal(t, "International Red Panda Day", got.Days[1].Name)
	assert.Equal(t, 21, got.Days[1].Day)

	status = getJSON(t, srv.URL+"/api/days?year=2024&month=0", &got)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, got.Days)

	var errResp map[string]string
	status = getJSON(t, srv.URL+"/api/days?year=abc", &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, errResp["error"])
}

func TestRules(t *testing.T) {
	rules := []model.Rule{
		{Name: "ok", MonthName: "January", DayName: "Monday", Occurence: "THIRD"},
		{Name: "bad", MonthName: "Janvier", DayName: "Monday", Occurrence: "first"},
	}
	srv := newTestServer(t, rules, nil)

	var got []ruleDTO
	status := getJSON(t, srv.URL+"/api/rules", &got)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Month)
	assert.Equal(t, 0, *got[0].Month)
	require.NotNil(t, got[0].Weekday)
	assert.Equal(t, 1, *got[0].Weekday)
	assert.Equal(t, "third", got[0].Occurrence)
	assert.Contains(t, got[0].RRule, "BYMONTH=1")
	assert.Empty(t, got[0].Error)

	assert.Nil(t, got[1].Month)
	assert.Contains(t, got[1].Error, "no such month")
}

func TestDescription(t *testing.T) {
	lookup := ics.LookupFunc(func(_ context.Context, url, fallback string) string {
		if url == "https://example.org/days/binturongs.txt" {
			return "Bearcats."
		}
		return fallback
	})
	srv := newTestServer(t, days.Default(), lookup)

	var got descriptionResponse
	status := getJSON(t, srv.URL+"/api/description?name=International+Binturong+Day", &got)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bearcats.", got.Description)

	status = getJSON(t, srv.URL+"/api/description?name=Ada+Lovelace+Day", &got)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ada Lovelace Day\n\n(No description available)", got.Description)

	var errResp map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/description?name=Nope", &errResp))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/description", &errResp))
}

func TestCalendar(t *testing.T) {
	srv := newTestServer(t, days.Default(), nil)

	resp, err := http.Get(srv.URL + "/calendar.ics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar"))

	var b bytes.Buffer
	_, err = b.ReadFrom(resp.Body)
	require.NoError(t, err)

	decoded, err := ics.Decode([]byte(b.String()))
	require.NoError(t, err)
	assert.Len(t, decoded, len(days.Default())*2)
}

func TestCalendarBuildOutlivesRequest(t *testing.T) {
	lookup := ics.LookupFunc(func(ctx context.Context, _, fallback string) string {
		if ctx.Err() != nil {
			return fallback
		}
		return "Fresh description."
	})
	cfg := config.DefaultConfig()
	cfg.StartYear, cfg.EndYear = 2024, 2024
	h := NewServer(cfg, days.Default(), lookup).Handler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/calendar.ics", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(days.Default()), strings.Count(rec.Body.String(), "DESCRIPTION:Fresh description.\r\n"))
}

func TestRulesCompiledOnce(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	rules := []model.Rule{
		{Name: "ok", MonthName: "May", DayName: "Saturday", Occurrence: "second"},
		{Name: "bad", MonthName: "Maytember", DayName: "Saturday", Occurrence: "second"},
	}
	srv := newTestServer(t, rules, nil)

	for _, path := range []string{"/api/days?year=2024&month=4", "/api/days?year=2025&month=4", "/api/rules", "/calendar.ics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	assert.Equal(t, 1, strings.Count(buf.String(), "commemorative day rule skipped"))
}

func TestUnknownLocale(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Locale = "tlh"
	srv := httptest.NewServer(NewServer(cfg, days.Default(), nil).Handler())
	defer srv.Close()

	for _, path := range []string{"/api/days", "/api/rules", "/calendar.ics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	srv := httptest.NewServer(NewServer(cfg, days.Default(), nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/rules")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/rules", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
