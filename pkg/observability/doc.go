/*
Package observability exports Prometheus metrics for capability dispatch and the
external connection pool.

Metrics are kept on a private prometheus.Registry so that embedding the toolbox in a
larger program never collides with the host's default registry.
*/
package observability
