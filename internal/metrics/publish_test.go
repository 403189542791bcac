package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStep(t *testing.T) {
	start := time.Now()
	end := start.Add(1500 * time.Millisecond)

	before := testutil.CollectAndCount(StepDuration)
	ObserveStep("push_site_test", "completed", &start, &end)
	assert.Equal(t, before+1, testutil.CollectAndCount(StepDuration))
}

func TestObserveStep_IgnoresUnfinished(t *testing.T) {
	start := time.Now()

	before := testutil.CollectAndCount(StepDuration)
	ObserveStep("await_build_test", "completed", &start, nil)
	ObserveStep("await_build_test", "completed", nil, &start)
	assert.Equal(t, before, testutil.CollectAndCount(StepDuration))
}

func TestPublishTotal(t *testing.T) {
	before := testutil.ToFloat64(PublishTotal.WithLabelValues(ResultTimeout))
	PublishTotal.WithLabelValues(ResultTimeout).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PublishTotal.WithLabelValues(ResultTimeout)))
}
