package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCountersAppearInScrape(t *testing.T) {
	m := New()
	m.AddSegmentsDownloaded("somechannel", 12)
	m.IncSegmentFailure("somechannel")
	m.IncVideoArchived("somechannel")
	m.IncPollCycle("somechannel")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Router().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		`kickvod_segments_downloaded_total{channel="somechannel"} 12`,
		`kickvod_segment_failures_total{channel="somechannel"} 1`,
		`kickvod_videos_archived_total{channel="somechannel"} 1`,
		`kickvod_poll_cycles_total{channel="somechannel"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q:\n%s", want, body)
		}
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Router().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
