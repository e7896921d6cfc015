package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageRuns(t *testing.T) {
	before := testutil.ToFloat64(StageRuns.WithLabelValues("composition", OutcomeOK))
	StageRuns.WithLabelValues("composition", OutcomeOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(StageRuns.WithLabelValues("composition", OutcomeOK)))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, OutcomeOK, Status(nil))
	assert.Equal(t, OutcomeError, Status(errors.New("boom")))
}

func TestHandler(t *testing.T) {
	RowsAppended.WithLabelValues("index_composition").Add(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "eqindex_store_rows_appended_total"))
}

func TestObserveStage(t *testing.T) {
	before := testutil.ToFloat64(StageRuns.WithLabelValues("performance", OutcomeEmpty))
	ObserveStage("performance", time.Now(), OutcomeEmpty)
	assert.Equal(t, before+1, testutil.ToFloat64(StageRuns.WithLabelValues("performance", OutcomeEmpty)))
}
