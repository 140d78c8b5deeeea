package domain

import "time"

// SimulationCompletedEvent 一次模拟完成后发布的领域事件。
type SimulationCompletedEvent struct {
	RunID      string    `json:"run_id"`
	Model      string    `json:"model"`
	Symbols    []string  `json:"symbols"`
	Paths      int       `json:"paths"`
	Horizon    int       `json:"horizon"`
	MeanFinal  float64   `json:"mean_final"`
	VaRDollar  float64   `json:"var_dollar"`
	Degraded   bool      `json:"degraded"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher 领域事件发布端口。
type EventPublisher interface {
	PublishSimulationCompleted(event SimulationCompletedEvent) error
}
