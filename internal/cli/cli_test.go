package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log:
  level: error
experiments:
  - id: grid-layout
    name: Helmet grid layout
    status: active
    variants:
      - {id: grid, weight: 1}
      - {id: list, weight: 1}
  - id: wizard
    status: draft
    variants:
      - {id: "off", weight: 1}
`

type harness struct {
	t      *testing.T
	config string
	db     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	config := filepath.Join(dir, "fg.yaml")
	require.NoError(t, os.WriteFile(config, []byte(testConfig), 0o644))

	return &harness{t: t, config: config, db: filepath.Join(dir, "fg.db")}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", h.config, "--db", h.db}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()

	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func TestExperiments_ListsConfiguredExperiments(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("experiments")
	assert.Contains(t, out, "grid-layout")
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "grid(1), list(1)")
	assert.Contains(t, out, "DRAFT")
}

func TestAssign_IsStickyAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	first := strings.TrimSpace(h.mustRun("assign", "grid-layout", "visitor-1"))
	assert.Contains(t, []string{"grid", "list"}, first)

	for i := 0; i < 3; i++ {
		assert.Equal(t, first, strings.TrimSpace(h.mustRun("assign", "grid-layout", "visitor-1")))
	}
	assert.Equal(t, first, strings.TrimSpace(h.mustRun("assign", "grid-layout", "visitor-1", "--peek")))

	out := h.mustRun("results", "grid-layout")
	assert.Contains(t, out, "EXPERIMENT: grid-layout")

	_, err := h.run("assign", "wizard", "visitor-1")
	assert.ErrorContains(t, err, "not found or not active")

	_, err = h.run("assign", "grid-layout", "visitor-2", "--peek")
	assert.ErrorContains(t, err, "has no assignment")
}

func TestTrackAndResults(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 4; i++ {
		h.mustRun("track", "grid-layout", "grid", "impression")
	}
	h.mustRun("track", "grid-layout", "grid", "click")
	h.mustRun("track", "grid-layout", "grid", "conversion", "--revenue", "19.99")

	out := h.mustRun("results", "grid-layout")
	assert.Contains(t, out, "25.00%")
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "19.99")
	assert.Contains(t, out, "list")

	_, err := h.run("track", "grid-layout", "grid", "hover")
	assert.ErrorContains(t, err, "invalid kind")

	_, err = h.run("track", "grid-layout", "grid", "click", "--revenue", "1")
	assert.ErrorContains(t, err, "only applies to conversions")

	_, err = h.run("results", "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestResults_FlagsAnomaly(t *testing.T) {
	h := newHarness(t)

	h.mustRun("track", "grid-layout", "list", "click")
	out := h.mustRun("results", "grid-layout")
	assert.Contains(t, out, "(!)")
}

func TestEventsFunnelsAndReport(t *testing.T) {
	h := newHarness(t)

	h.mustRun("event", "s-1", "homepage_visit", "--at", "2026-09-12T08:00:00Z")
	h.mustRun("event", "s-1", "helmet_view", "--helmet", "mips-pro", "--at", "2026-09-12T08:00:20Z")
	h.mustRun("event", "s-1", "affiliate_click", "--helmet", "mips-pro", "--network", "amazon", "--at", "2026-09-12T08:01:00Z")
	h.mustRun("event", "s-2", "homepage_visit", "--at", "2026-09-12T09:00:00Z")

	_, err := h.run("event", "s-1", "checkout")
	assert.ErrorContains(t, err, "unknown stage")
	_, err = h.run("event", "s-1", "affiliate_click", "--value", "NaN")
	assert.ErrorContains(t, err, "not a finite number")

	out := h.mustRun("funnels", "s-1")
	assert.Contains(t, out, "homepage_visit > helmet_view > affiliate_click")
	assert.NotContains(t, out, "s-2")

	out = h.mustRun("report", "--session", "s-1")
	assert.Contains(t, out, "SESSIONS: 2  CONVERTED: 1  RATE: 50.00%")
	assert.Contains(t, out, "AVG TIME TO CLICK: 60.0s")
	assert.Contains(t, out, "MOST EFFECTIVE PATH: homepage_visit > helmet_view > affiliate_click")
	assert.Contains(t, out, "amazon")

	out = h.mustRun("report", "--session", "s-1", "--json")
	var rep struct {
		SessionData struct {
			SessionID       string  `json:"session_id"`
			AffiliateClicks int     `json:"affiliate_clicks"`
			TotalValue      float64 `json:"total_value"`
		} `json:"session_data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "s-1", rep.SessionData.SessionID)
	assert.Equal(t, 1, rep.SessionData.AffiliateClicks)
	assert.Equal(t, 10.0, rep.SessionData.TotalValue)
}

func TestEvent_ZeroClickValueFromConfig(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.config, []byte(testConfig+"funnel:\n  click_value: 0\n"), 0o644))

	h.mustRun("event", "s-1", "affiliate_click", "--network", "rei")
	out := h.mustRun("export", "--format", "csv")
	assert.Contains(t, out, ",affiliate_click,,rei,0\n")
}

func TestEvent_HelpListsEveryStage(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("event", "--help")
	for _, stage := range []string{"homepage_visit", "helmet_search", "helmet_view", "affiliate_click", "external_visit"} {
		assert.Contains(t, out, stage)
	}
}

func TestReport_NoData(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.mustRun("report"), "No funnel data yet.")
}

func TestExport(t *testing.T) {
	h := newHarness(t)

	h.mustRun("event", "s-1", "homepage_visit", "--at", "2026-09-12T08:00:00Z")
	h.mustRun("event", "s-1", "affiliate_click", "--helmet", "h-1", "--network", "rei", "--value", "7.5", "--at", "2026-09-12T08:01:00Z")

	out := h.mustRun("export", "--format", "csv")
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"timestamp", "session_id", "stage", "helmet_id", "network", "value"}, rows[0])
	assert.Equal(t, []string{"2026-09-12T08:01:00Z", "s-1", "affiliate_click", "h-1", "rei", "7.5"}, rows[2])

	out = h.mustRun("export", "--format", "json")
	var export jsonExport
	require.NoError(t, json.Unmarshal([]byte(out), &export))
	require.Len(t, export.Events, 2)
	assert.Equal(t, "homepage_visit", export.Events[0].Stage)

	_, err = h.run("export", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestPruneAndReset(t *testing.T) {
	h := newHarness(t)

	h.mustRun("event", "s-old", "homepage_visit", "--at", "2001-01-01T00:00:00Z")
	h.mustRun("event", "s-new", "homepage_visit")
	h.mustRun("track", "grid-layout", "grid", "impression")

	assert.Contains(t, h.mustRun("prune", "--older-than", "720h"), "Pruned 1 funnel events")

	out := h.mustRun("funnels")
	assert.Contains(t, out, "s-new")
	assert.NotContains(t, out, "s-old")

	_, err := h.run("prune")
	assert.ErrorContains(t, err, "must be positive")

	assert.Contains(t, h.mustRun("reset", "--yes"), "All analytics data deleted")
	assert.Contains(t, h.mustRun("funnels"), "No funnel events yet.")
}

func TestToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("token")
	assert.ErrorContains(t, err, "no server running")

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(h.db), ".fg-token"), []byte("abcd1234"), 0o600))
	assert.Contains(t, h.mustRun("token"), "/v1/report?token=abcd1234")
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-42, "-42"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
