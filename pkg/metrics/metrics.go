package metrics

import (
	"sync"
	"time"
)

// Collector is a small in-process metrics aggregator exposed on /metrics.
// Counters are keyed by name and a single label pair; latencies keep a
// sliding window of the most recent observations per name.
type Collector struct {
	counters  map[string]map[string]int64
	latencies map[string][]time.Duration
	mutex     sync.RWMutex
}

const latencyWindow = 100

func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]map[string]int64),
		latencies: make(map[string][]time.Duration),
	}
}

func (c *Collector) IncrementCounter(name string, labels map[string]string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	labelKey := "default"
	for k, v := range labels {
		labelKey = k + ":" + v
		break
	}

	if _, exists := c.counters[name]; !exists {
		c.counters[name] = make(map[string]int64)
	}
	c.counters[name][labelKey]++
}

func (c *Collector) ObserveLatency(name string, duration time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	observations := append(c.latencies[name], duration)
	if len(observations) > latencyWindow {
		observations = observations[len(observations)-latencyWindow:]
	}
	c.latencies[name] = observations
}

func (c *Collector) GetCounters() map[string]map[string]int64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	counters := make(map[string]map[string]int64, len(c.counters))
	for name, labels := range c.counters {
		counters[name] = make(map[string]int64, len(labels))
		for label, value := range labels {
			counters[name][label] = value
		}
	}
	return counters
}

func (c *Collector) GetLatencies() map[string]map[string]float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]map[string]float64)
	for name, durations := range c.latencies {
		if len(durations) == 0 {
			continue
		}
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		result[name] = map[string]float64{
			"avg_ms": float64(sum) / float64(len(durations)) / float64(time.Millisecond),
		}
	}
	return result
}
