package shared

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2025-06-02T18:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("02/06/2025")
	assert.Error(t, err)
}

func TestParseYear(t *testing.T) {
	year, ok := ParseYear("", 2025)
	assert.True(t, ok)
	assert.Equal(t, 2025, year)

	_, ok = ParseYear("25", 2025)
	assert.False(t, ok)
}

func TestValidatorCollectsSortedIssues(t *testing.T) {
	v := NewValidator()
	v.Required("reason", " ")
	start := v.Date("startDate", "2025-06-05")
	end := v.Date("endDate", "2025-06-01")
	v.DateOrder("startDate", start, "endDate", end)
	assert.Empty(t, v.OneOf("durationType", "weekly", "full_day", "half_day", "hourly"))
	assert.Equal(t, "half_day", v.OneOf("durationType", " Half_Day ", "full_day", "half_day", "hourly"))
	assert.Equal(t, time.Time{}, v.OptionalDate("from", ""))
	v.Year("year", 25)

	issues := v.Issues()
	require.Len(t, issues, 4)
	assert.Equal(t, []string{"durationType", "endDate", "reason", "year"},
		[]string{issues[0].Field, issues[1].Field, issues[2].Field, issues[3].Field})

	rec := httptest.NewRecorder()
	assert.True(t, v.Reject(rec, "rid"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fields"`)
}

func TestValidatorWithoutIssuesDoesNotReject(t *testing.T) {
	v := NewValidator()
	v.Required("name", "Casual")
	rec := httptest.NewRecorder()
	assert.False(t, v.Reject(rec, "rid"))
	assert.Equal(t, 0, rec.Body.Len())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	rec := httptest.NewRecorder()
	ok := DecodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`)), &dst, "")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	ok = DecodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`)), &dst, "")
	assert.True(t, ok)
	assert.Equal(t, "x", dst.Name)
}

func TestPage(t *testing.T) {
	v := NewValidator()
	assert.Equal(t, Page{Limit: 200, Offset: 20}, v.Page(url.Values{"limit": {"500"}, "offset": {"20"}}, 50, 200))
	assert.Equal(t, Page{Limit: 50}, v.Page(url.Values{}, 50, 200))
	assert.Empty(t, v.Issues())

	v.Page(url.Values{"limit": {"0"}, "offset": {"-1"}}, 50, 200)
	require.Len(t, v.Issues(), 2)
	assert.Equal(t, "limit", v.Issues()[0].Field)
}
