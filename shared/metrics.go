package shared

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ServiceMetrics tracks success and timing of the actions a component performs
type ServiceMetrics struct {
	serviceName         string
	totalRequests       int64
	successfulRequests  int64
	failedRequests      int64
	totalProcessingTime time.Duration
	lastUpdated         time.Time
	counters            map[string]int64
	performance         *PerformanceMetrics
	mutex               sync.RWMutex
}

// MetricsSnapshot is an immutable copy of ServiceMetrics
type MetricsSnapshot struct {
	ServiceName           string           `json:"service_name"`
	TotalRequests         int64            `json:"total_requests"`
	SuccessfulRequests    int64            `json:"successful_requests"`
	FailedRequests        int64            `json:"failed_requests"`
	TotalProcessingTime   time.Duration    `json:"total_processing_time"`
	AverageProcessingTime time.Duration    `json:"average_processing_time"`
	P95ProcessingTime     time.Duration    `json:"p95_processing_time"`
	MaxProcessingTime     time.Duration    `json:"max_processing_time"`
	LastUpdated           time.Time        `json:"last_updated"`
	Counters              map[string]int64 `json:"counters"`
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		serviceName: serviceName,
		lastUpdated: time.Now(),
		counters:    make(map[string]int64),
		performance: NewPerformanceMetrics(),
	}
}

// RecordRequest records an action with its success status and processing time
func (m *ServiceMetrics) RecordRequest(success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalRequests++
	m.totalProcessingTime += processingTime
	if success {
		m.successfulRequests++
	} else {
		m.failedRequests++
	}
	m.lastUpdated = time.Now()
	m.performance.RecordProcessingTime(processingTime)
}

// IncrementCounter increments a named counter
func (m *ServiceMetrics) IncrementCounter(key string) {
	m.AddToCounter(key, 1)
}

// AddToCounter adds delta to a named counter
func (m *ServiceMetrics) AddToCounter(key string, delta int64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[key] += delta
	m.lastUpdated = time.Now()
}

// Counter returns the current value of a named counter
func (m *ServiceMetrics) Counter(key string) int64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.counters[key]
}

// GetSuccessRate returns the success rate as a percentage
func (m *ServiceMetrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.totalRequests == 0 {
		return 0.0
	}
	return float64(m.successfulRequests) / float64(m.totalRequests) * 100.0
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *ServiceMetrics) GetSnapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}

	var average time.Duration
	if m.totalRequests > 0 {
		average = time.Duration(int64(m.totalProcessingTime) / m.totalRequests)
	}

	perf := m.performance.GetPerformanceSnapshot()
	return MetricsSnapshot{
		ServiceName:           m.serviceName,
		TotalRequests:         m.totalRequests,
		SuccessfulRequests:    m.successfulRequests,
		FailedRequests:        m.failedRequests,
		TotalProcessingTime:   m.totalProcessingTime,
		AverageProcessingTime: average,
		P95ProcessingTime:     perf.P95,
		MaxProcessingTime:     perf.Max,
		LastUpdated:           m.lastUpdated,
		Counters:              counters,
	}
}

// LogSummary logs a metrics summary on the given entry
func (m *ServiceMetrics) LogSummary(logger *logrus.Entry) {
	snapshot := m.GetSnapshot()
	logger.WithFields(logrus.Fields{
		"service_name":            snapshot.ServiceName,
		"total_requests":          snapshot.TotalRequests,
		"successful_requests":     snapshot.SuccessfulRequests,
		"failed_requests":         snapshot.FailedRequests,
		"success_rate":            m.GetSuccessRate(),
		"average_processing_time": snapshot.AverageProcessingTime,
		"p95_processing_time":     snapshot.P95ProcessingTime,
		"max_processing_time":     snapshot.MaxProcessingTime,
		"counters":                snapshot.Counters,
	}).Info("Service metrics summary")
}

// PerformanceMetrics keeps a bounded window of processing times
type PerformanceMetrics struct {
	mutex   sync.Mutex
	min     time.Duration
	max     time.Duration
	samples []time.Duration
}

// PerformanceSnapshot is a copy of the current percentile view
type PerformanceSnapshot struct {
	Min time.Duration
	Max time.Duration
	P95 time.Duration
	P99 time.Duration
}

const maxPerformanceSamples = 1000

// NewPerformanceMetrics creates a new performance metrics tracker
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{samples: make([]time.Duration, 0, 64)}
}

// RecordProcessingTime records a processing time
func (pm *PerformanceMetrics) RecordProcessingTime(duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.min == 0 || duration < pm.min {
		pm.min = duration
	}
	if duration > pm.max {
		pm.max = duration
	}
	if len(pm.samples) >= maxPerformanceSamples {
		pm.samples = pm.samples[1:]
	}
	pm.samples = append(pm.samples, duration)
}

// GetPerformanceSnapshot computes percentiles over the retained window
func (pm *PerformanceMetrics) GetPerformanceSnapshot() PerformanceSnapshot {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	snapshot := PerformanceSnapshot{Min: pm.min, Max: pm.max}
	if len(pm.samples) == 0 {
		return snapshot
	}

	times := make([]time.Duration, len(pm.samples))
	copy(times, pm.samples)
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	snapshot.P95 = times[percentileIndex(len(times), 0.95)]
	snapshot.P99 = times[percentileIndex(len(times), 0.99)]
	return snapshot
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
