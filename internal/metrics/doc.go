// Package metrics records build and stage metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics
// collection never needs nil checks:
//
//	recorder := metrics.NewPrometheusRecorder(registry)
//	builder := build.New(cfg, build.WithRecorder(recorder))
//
// The Prometheus implementation registers its collectors on a private
// registry. WriteTextfile exports that registry in the node_exporter
// textfile format after each build, which suits a one-shot CLI better than
// an HTTP scrape endpoint.
package metrics
