package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	turnOutcomeOK          = "ok"
	turnOutcomeConfigError = "config_error"
	turnOutcomeFailed      = "failed"
)

var (
	chatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persona_chat_turns_total",
		Help: "Chat turns by backend capability and outcome.",
	}, []string{"capability", "outcome"})

	statChangesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "persona_stat_changes_applied_total",
		Help: "Stat changes applied to session snapshots.",
	})

	moderationScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persona_moderation_scans_total",
		Help: "Moderation scans by verdict.",
	}, []string{"verdict"})
)
