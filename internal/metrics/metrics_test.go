package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFileEvent(t *testing.T) {
	before := testutil.ToFloat64(fileEventsTotal.WithLabelValues("modify"))
	RecordFileEvent("modify")
	RecordFileEvent("modify")
	after := testutil.ToFloat64(fileEventsTotal.WithLabelValues("modify"))

	if after-before != 2 {
		t.Errorf("Expected counter to grow by 2, grew by %v", after-before)
	}
}

func TestRecordDeltaBytes(t *testing.T) {
	before := testutil.ToFloat64(deltaBytesTotal.WithLabelValues("delta"))
	RecordDeltaBytes("delta", 12)
	after := testutil.ToFloat64(deltaBytesTotal.WithLabelValues("delta"))

	if after-before != 12 {
		t.Errorf("Expected 12 bytes recorded, got %v", after-before)
	}
}

func TestGauges(t *testing.T) {
	SetLedgerEntries(7)
	if got := testutil.ToFloat64(ledgerEntries); got != 7 {
		t.Errorf("Expected ledger gauge 7, got %v", got)
	}

	SetSubscribers(3)
	if got := testutil.ToFloat64(subscribersConnected); got != 3 {
		t.Errorf("Expected subscriber gauge 3, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	RecordBroadcast("log:update")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "logmon_messages_broadcast_total") {
		t.Error("Metrics output missing logmon_messages_broadcast_total")
	}
}
