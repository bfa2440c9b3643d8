package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/evaluation"
)

type EventType string

const (
	EventQueryEvaluated         EventType = "query_evaluated"
	EventConfigurationEvaluated EventType = "configuration_evaluated"
)

// QueryEvent records the evaluation of one query under one configuration.
type QueryEvent struct {
	Type              EventType                    `json:"type"`
	RunID             string                       `json:"run_id"`
	Configuration     string                       `json:"configuration"`
	Task              int                          `json:"task"`
	Query             string                       `json:"query"`
	Clauses           string                       `json:"clauses"`
	Hits              int                          `json:"hits"`
	TotalRelevant     int                          `json:"total_relevant"`
	RelevantRetrieved int                          `json:"relevant_retrieved"`
	RecallUndefined   bool                         `json:"recall_undefined"`
	Precision         []evaluation.CutoffPrecision `json:"precision"`
	AveragePrecision  float64                      `json:"average_precision"`
	ReciprocalRank    float64                      `json:"reciprocal_rank"`
	Curve             evaluation.Curve             `json:"curve"`
	CacheHit          bool                         `json:"cache_hit"`
	LatencyMs         int64                        `json:"latency_ms"`
	Timestamp         time.Time                    `json:"timestamp"`
}

// ConfigurationEvent closes one configuration of a run with its averages.
type ConfigurationEvent struct {
	Type      EventType            `json:"type"`
	RunID     string               `json:"run_id"`
	Task      int                  `json:"task"`
	Summary   ConfigurationSummary `json:"summary"`
	Timestamp time.Time            `json:"timestamp"`
}
