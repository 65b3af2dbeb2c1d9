package application

import (
	"context"
	"errors"
	"testing"

	"taxvault-webhook-layer/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rs/zerolog"
)

// recordingHandler stands in for the topic handlers, which live in their own package
type recordingHandler struct {
	topic   string
	outcome domain.WriteOutcome
	err     error
	seen    []string
}

func (h *recordingHandler) CanHandle(topic string) bool {
	return topic == h.topic
}

func (h *recordingHandler) Handle(_ context.Context, _ *domain.WebhookEvent, integration *domain.Integration) (domain.WriteOutcome, error) {
	h.seen = append(h.seen, integration.ID)
	return h.outcome, h.err
}

func TestProcessWebhook(t *testing.T) {
	t.Parallel()

	disconnected := connectedIntegration("int_9", testShop)
	disconnected.Status = domain.IntegrationStatusDisconnected

	tests := []struct {
		name        string
		topic       string
		shop        string
		outcome     domain.WriteOutcome
		handlerErr  error
		wantOutcome domain.WriteOutcome
		wantSeen    []string
		wantErr     bool
		wantLogged  int
	}{
		{
			name:        "routes to every active integration",
			topic:       domain.TopicOrdersCreate,
			shop:        testShop,
			outcome:     domain.OutcomeCreated,
			wantOutcome: domain.OutcomeCreated,
			wantSeen:    []string{"int_1", "int_2"},
			wantLogged:  1,
		},
		{
			name:        "unknown shop is ignored",
			topic:       domain.TopicOrdersCreate,
			shop:        "nobody.myshopify.com",
			wantOutcome: domain.OutcomeIgnored,
			wantLogged:  1,
		},
		{
			name:        "unknown topic is ignored",
			topic:       "products/create",
			shop:        testShop,
			wantOutcome: domain.OutcomeIgnored,
			wantLogged:  1,
		},
		{
			name:       "handler failure is returned",
			topic:      domain.TopicOrdersCreate,
			shop:       testShop,
			handlerErr: errors.New("storage down"),
			wantSeen:   []string{"int_1"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			other := connectedIntegration("int_2", testShop)
			other.OrganizationID = "org_2"
			repo := newFakeIntegrationRepo(connectedIntegration("int_1", testShop), other, disconnected)
			handler := &recordingHandler{topic: domain.TopicOrdersCreate, outcome: tt.outcome, err: tt.handlerErr}
			eventLog := &fakeEventLog{}
			svc := NewWebhookService(repo, eventLog, nil, zerolog.Nop(), handler)

			outcome, err := svc.ProcessWebhook(context.Background(), tt.topic, tt.shop, "wh_1", []byte(`{"id":1}`))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessWebhook() error = %v, wantErr %v", err, tt.wantErr)
			}
			if outcome != tt.wantOutcome {
				t.Errorf("outcome = %q, want %q", outcome, tt.wantOutcome)
			}
			if diff := cmp.Diff(tt.wantSeen, handler.seen, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("handled integrations mismatch (-want +got):\n%s", diff)
			}
			if len(eventLog.events) != tt.wantLogged {
				t.Errorf("logged events = %d, want %d", len(eventLog.events), tt.wantLogged)
			}
			if tt.wantLogged > 0 {
				got := eventLog.events[0]
				if !got.Verified || got.WebhookID != "wh_1" || got.Outcome != string(tt.wantOutcome) {
					t.Errorf("logged event = %+v", got)
				}
			}
		})
	}
}

func TestStrongerOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b domain.WriteOutcome
		want domain.WriteOutcome
	}{
		{domain.OutcomeIgnored, domain.OutcomeNotFound, domain.OutcomeNotFound},
		{domain.OutcomeCreated, domain.OutcomeUpdated, domain.OutcomeCreated},
		{domain.OutcomeStale, domain.OutcomeUpdated, domain.OutcomeUpdated},
		{domain.OutcomeUpdated, domain.OutcomeNotFound, domain.OutcomeUpdated},
	}
	for _, tt := range tests {
		if got := strongerOutcome(tt.a, tt.b); got != tt.want {
			t.Errorf("strongerOutcome(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}
