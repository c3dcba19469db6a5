/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package metrics owns the process's prometheus registry. There is no HTTP
// listener — a stdio process has nothing to scrape — so the counters are
// dumped on demand by the mcp_audit.metrics action instead via Gather.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds every counter/histogram sentryfrogg records.
type Registry struct {
	reg *prometheus.Registry

	ToolCallsTotal     *prometheus.CounterVec
	ToolCallDuration    *prometheus.HistogramVec
	ToolCallBlockedTotal *prometheus.CounterVec
	SpillsTotal        prometheus.Counter
	RetriesTotal       *prometheus.CounterVec
	JobsActive         prometheus.Gauge
}

// New constructs and registers every metric.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentryfrogg_tool_calls_total",
			Help: "Total tool calls by tool, action, and outcome.",
		}, []string{"tool", "action", "outcome"}),
		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentryfrogg_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool", "action"}),
		ToolCallBlockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentryfrogg_tool_calls_blocked_total",
			Help: "Tool calls blocked by policy, by reason.",
		}, []string{"tool", "reason"}),
		SpillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentryfrogg_artifact_spills_total",
			Help: "Oversize result values spilled to the artifact store.",
		}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentryfrogg_runbook_retries_total",
			Help: "Runbook step retries by step name.",
		}, []string{"step"}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentryfrogg_jobs_active",
			Help: "Currently running detached jobs.",
		}),
	}
	reg.MustRegister(
		r.ToolCallsTotal, r.ToolCallDuration, r.ToolCallBlockedTotal,
		r.SpillsTotal, r.RetriesTotal, r.JobsActive,
	)
	return r
}

// Gather renders every metric family, for the mcp_audit.metrics action.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.reg.Gather()
}
