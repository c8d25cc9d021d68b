package aws

import (
	"context"
	"time"

	"immigration-advisor/internal/common/logger"
	"immigration-advisor/internal/common/resilience"
)

const breakerEventType = "circuit_breaker_state_changed"

type BreakerAlert struct {
	Breaker    string    `json:"breaker"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Service    string    `json:"service"`
	OccurredAt time.Time `json:"occurredAt"`
}

// BreakerAlerts publishes breaker transitions to the operator topic.
type BreakerAlerts struct {
	client   *SNSClient
	topicARN string
	service  string
	timeout  time.Duration
	logger   logger.Logger
}

func NewBreakerAlerts(client *SNSClient, topicARN, service string, log logger.Logger) *BreakerAlerts {
	return &BreakerAlerts{
		client:   client,
		topicARN: topicARN,
		service:  service,
		timeout:  5 * time.Second,
		logger:   log.WithFields(map[string]interface{}{"component": "breaker-alerts"}),
	}
}

// OnStateChange matches resilience.BreakerConfig.OnStateChange. Publish
// failures are logged only.
func (a *BreakerAlerts) OnStateChange(name string, from, to resilience.State) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	alert := BreakerAlert{
		Breaker:    name,
		From:       from.String(),
		To:         to.String(),
		Service:    a.service,
		OccurredAt: time.Now().UTC(),
	}
	subject := "Circuit breaker " + name + " is " + to.String()

	id, err := a.client.PublishJSON(ctx, a.topicARN, subject, breakerEventType, alert)
	if err != nil {
		a.logger.Error("failed to publish breaker alert", map[string]interface{}{
			"breaker": name,
			"error":   err.Error(),
		})
		return
	}
	a.logger.Info("breaker alert published", map[string]interface{}{"breaker": name, "to": to.String(), "messageId": id})
}
