package domain

import (
	"time"
)

// Webhook topics the service subscribes to
const (
	TopicOrdersCreate    = "orders/create"
	TopicOrdersUpdated   = "orders/updated"
	TopicOrdersCancelled = "orders/cancelled"
	TopicRefundsCreate   = "refunds/create"
	TopicAppUninstalled  = "app/uninstalled"
)

// RequiredTopics is the topic set every connected Shopify integration must be subscribed to
var RequiredTopics = []string{
	TopicOrdersCreate,
	TopicOrdersUpdated,
	TopicOrdersCancelled,
	TopicRefundsCreate,
	TopicAppUninstalled,
}

// IsRequiredTopic reports whether topic is part of RequiredTopics
func IsRequiredTopic(topic string) bool {
	for _, t := range RequiredTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// WebhookSubscription is a live subscription on the platform. It is never persisted.
type WebhookSubscription struct {
	ID      string `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
	Format  string `json:"format"`
}

// WebhookEvent is one verified inbound delivery
type WebhookEvent struct {
	ID         string    `json:"id"`
	WebhookID  string    `json:"webhookId,omitempty"`
	Platform   Platform  `json:"platform"`
	Topic      string    `json:"topic"`
	Shop       string    `json:"shop"`
	Payload    []byte    `json:"-"`
	Verified   bool      `json:"verified"`
	Outcome    string    `json:"outcome,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// TopicStatus is the health of one required topic
type TopicStatus string

const (
	TopicHealthy       TopicStatus = "healthy"
	TopicMissing       TopicStatus = "missing"
	TopicMisconfigured TopicStatus = "misconfigured"
)

// HealthStatus is the overall health of an integration's subscriptions
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthFailed   HealthStatus = "failed"
)

// TopicHealth is the per-topic part of a HealthRecord
type TopicHealth struct {
	Topic           string      `json:"topic"`
	Status          TopicStatus `json:"status"`
	SubscriptionIDs []string    `json:"subscriptionIds,omitempty"`
	Created         bool        `json:"created,omitempty"`
	Detail          string      `json:"detail,omitempty"`
}

// HealthRecord is the outcome of one convergence pass for an integration
type HealthRecord struct {
	IntegrationID       string        `json:"integrationId"`
	Topics              []TopicHealth `json:"topics"`
	ConsecutiveFailures int64         `json:"consecutiveFailures"`
	OverallStatus       HealthStatus  `json:"overallStatus"`
	CheckedAt           time.Time     `json:"checkedAt"`
	Error               string        `json:"error,omitempty"`
}

// DeriveOverallStatus folds per-topic results into the overall status:
// any missing topic fails the integration, any misconfigured topic degrades it.
func DeriveOverallStatus(topics []TopicHealth) HealthStatus {
	status := HealthHealthy
	for _, t := range topics {
		switch t.Status {
		case TopicMissing:
			return HealthFailed
		case TopicMisconfigured:
			status = HealthDegraded
		}
	}
	return status
}
