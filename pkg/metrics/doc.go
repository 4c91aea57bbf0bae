// Package metrics exports session lifecycle metrics to Prometheus.
//
// SessionCollector is registered both as a session.Listener and as a
// prometheus.Collector:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewSessionCollector(nodeID)
//	if err := collector.Register(reg); err != nil {
//	    return err
//	}
//	manager.AddListener(collector)
//
//	r.Handle("/metrics", metrics.Handler(reg))
package metrics
