package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.StreamOpened()
	c.StreamOpened()
	c.StreamClosed("timed_out")
	c.Connect("ok")
	c.Connect("ok")
	c.Connect("rate_limited")
	c.Push("delivered", 3*time.Millisecond)
	c.Push("absent", 0)
	c.Created("JOIN")
	c.Purged(4)
	c.Purged(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeStreams))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.closes.WithLabelValues("timed_out")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connects.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connects.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pushes.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pushes.WithLabelValues("absent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.created.WithLabelValues("JOIN")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.purged))
	assert.Equal(t, 1, testutil.CollectAndCount(c.pushDuration))
}

func TestCollector_Nil(t *testing.T) {
	t.Parallel()

	var c *Collector
	assert.NotPanics(t, func() {
		c.StreamOpened()
		c.StreamClosed("completed")
		c.Connect("ok")
		c.Push("failed", time.Second)
		c.Created("COMMENT")
		c.Purged(1)
	})
}
