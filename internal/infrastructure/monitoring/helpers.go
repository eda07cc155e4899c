package monitoring

// Snapshot returns a copy of the current aggregate values for the JSON
// metrics endpoint.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// AverageDuration returns the mean request duration in seconds.
func (s MetricsSnapshot) AverageDuration() float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return s.TotalDuration / float64(s.RequestCount)
}
