/*
Package monitoring provides Prometheus metrics for the API.

# Overview

Collectors are registered on an injectable prometheus.Registerer so tests can
use a private registry. HTTP metrics are labelled by route template rather
than raw path.

# Features

- HTTP request metrics (latency, throughput, size)
- Rate limit rejections per policy
- Identity gate failures by reason
- Identity provider and data store call latency
- Notification rows delivered and broadcast batch outcomes
- Audit write outcomes (written, failed, shed)
- Uptime, Go runtime and process metrics

# Usage

	reg := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(monitoring.Handler(reg)))

	timer := monitoring.NewTimer(metrics, "identity", "verify")
	principal, err := verifier.Verify(ctx, token)
	timer.Stop(err)

All Record methods are safe on a nil *Metrics.
*/
package monitoring
