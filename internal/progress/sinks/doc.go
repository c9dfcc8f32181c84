// Package sinks provides progress.Sink implementations backed by zap
// logging and Prometheus metrics.
package sinks
