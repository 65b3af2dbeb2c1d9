package ports

// Metrics records service counters. Implementations must be safe for concurrent use.
type Metrics interface {
	WebhookEvent(topic, outcome string)
	SignatureFailure()
	HealthCheck(integrationID, status string, consecutiveFailures int64)
	PlatformRequest(operation, result string)
	ImportOrder(result string)
}
