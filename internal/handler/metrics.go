package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messageProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "chatguard_message_duration_sec",
	Help:    "Total duration of group message moderation",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"adapter"})

var messageProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_messages_processed",
	Help: "Number of group messages processed",
}, []string{"adapter"})

var ruleMatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_rule_matches",
	Help: "Number of messages matching at least one rule",
}, []string{"adapter", "group"})

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_actions",
	Help: "Number of moderation actions carried out",
}, []string{"adapter", "action"})

var actionErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_action_errors",
	Help: "Number of platform calls which failed",
}, []string{"adapter", "action"})

var activeViolationRecords = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chatguard_violation_records",
	Help: "Number of live violation counters",
})
