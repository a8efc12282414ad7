package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/ragent/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("ragent-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordPass("router-a", PassConverged)
	RecordChanges("router-a", "addresses", "added", 0)
	RecordGatewayOp("router-a", "query", 3*time.Millisecond, nil)
	RecordGatewayOp("router-a", "create", 3*time.Millisecond, errors.New("boom"))
}

func TestRecordChangesCounts(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(reconcileChanges.WithLabelValues("router-count", "autolinks", "removed"))
	RecordChanges("router-count", "autolinks", "removed", 3)
	RecordChanges("router-count", "autolinks", "removed", -1)
	after := testutil.ToFloat64(reconcileChanges.WithLabelValues("router-count", "autolinks", "removed"))
	if after-before != 3 {
		t.Fatalf("expected +3, got %v", after-before)
	}
}
