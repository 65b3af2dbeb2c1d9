package application

import (
	"context"
	"errors"
	"testing"

	"taxvault-webhook-layer/internal/domain"

	"github.com/rs/zerolog"
)

func newTestIntegrationService(shopify *fakeShopify, integrations ...*domain.Integration) (*IntegrationService, *fakeIntegrationRepo, *fakeTransactionRepo) {
	repo := newFakeIntegrationRepo(integrations...)
	transactions := newFakeTransactionRepo()
	manager := NewWebhookManager(repo, shopify, fakeCipher{}, newFakeHealthStore(), nil, testAppURL, zerolog.Nop())
	svc := NewIntegrationService(repo, transactions, shopify, fakeCipher{}, manager, zerolog.Nop())
	return svc, repo, transactions
}

func TestConnect(t *testing.T) {
	t.Parallel()

	shopify := newFakeShopify()
	svc, repo, _ := newTestIntegrationService(shopify)
	ctx := context.Background()

	result, err := svc.Connect(ctx, ConnectIntegrationInput{
		OrganizationID: "org_1",
		Shop:           "https://Test.myshopify.com/",
		AccessToken:    "shpat_abc",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	got := result.Integration
	if got.Credentials.Shop != testShop {
		t.Errorf("Shop = %q, want %q", got.Credentials.Shop, testShop)
	}
	if got.Credentials.AccessToken != "enc:shpat_abc" {
		t.Errorf("AccessToken = %q, want it stored encrypted", got.Credentials.AccessToken)
	}
	if got.Status != domain.IntegrationStatusConnected {
		t.Errorf("Status = %s, want CONNECTED", got.Status)
	}
	if got.Credentials.ShopInfo.Email != "owner@example.com" {
		t.Errorf("ShopInfo = %+v", got.Credentials.ShopInfo)
	}
	if result.Health.OverallStatus != domain.HealthHealthy || len(shopify.subs) != 5 {
		t.Errorf("health = %s with %d subscriptions, want healthy with 5", result.Health.OverallStatus, len(shopify.subs))
	}

	// reconnecting the same shop keeps one integration
	again, err := svc.Connect(ctx, ConnectIntegrationInput{OrganizationID: "org_1", Shop: testShop, AccessToken: "shpat_new"})
	if err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if again.Integration.ID != got.ID {
		t.Errorf("reconnect id = %s, want %s", again.Integration.ID, got.ID)
	}
	if len(repo.items) != 1 {
		t.Errorf("integrations = %d, want 1", len(repo.items))
	}
	if len(shopify.subs) != 5 {
		t.Errorf("subscriptions after reconnect = %d, want 5", len(shopify.subs))
	}
}

func TestConnect_Validation(t *testing.T) {
	t.Parallel()

	rejected := newFakeShopify()
	rejected.shopErr = &domain.AuthError{Status: 401, Message: "invalid token"}

	tests := []struct {
		name    string
		shopify *fakeShopify
		input   ConnectIntegrationInput
	}{
		{name: "missing org", shopify: newFakeShopify(), input: ConnectIntegrationInput{Shop: testShop, AccessToken: "x"}},
		{name: "foreign domain", shopify: newFakeShopify(), input: ConnectIntegrationInput{OrganizationID: "o", Shop: "example.com", AccessToken: "x"}},
		{name: "missing token", shopify: newFakeShopify(), input: ConnectIntegrationInput{OrganizationID: "o", Shop: testShop}},
		{name: "token rejected", shopify: rejected, input: ConnectIntegrationInput{OrganizationID: "o", Shop: testShop, AccessToken: "x"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, repo, _ := newTestIntegrationService(tt.shopify)
			_, err := svc.Connect(context.Background(), tt.input)
			var validation *domain.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("Connect() error = %v, want *domain.ValidationError", err)
			}
			if len(repo.items) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	shopify := newFakeShopify()
	shopify.subs = []domain.WebhookSubscription{
		{ID: "1", Topic: domain.TopicOrdersCreate, Address: testCallback},
		{ID: "2", Topic: domain.TopicOrdersCreate, Address: "https://another-app.example.com"},
	}
	svc, repo, transactions := newTestIntegrationService(shopify, connectedIntegration("int_1", testShop))
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		if _, err := transactions.Upsert(ctx, &domain.Transaction{IntegrationID: "int_1", ExternalID: id}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	deleted, err := svc.Disconnect(ctx, "int_1")
	if err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if len(shopify.subs) != 1 || shopify.subs[0].ID != "2" {
		t.Errorf("remaining subscriptions = %+v, want only the foreign one", shopify.subs)
	}

	stored, _ := repo.GetByID(ctx, "int_1")
	if stored.Status != domain.IntegrationStatusDisconnected || stored.DisconnectReason != domain.DisconnectReasonUser {
		t.Errorf("integration = %s/%s, want DISCONNECTED/%s", stored.Status, stored.DisconnectReason, domain.DisconnectReasonUser)
	}
	if stored.Credentials.AccessToken != "" {
		t.Error("access token should be cleared")
	}

	if _, err := svc.Disconnect(ctx, "missing"); !errors.Is(err, domain.ErrIntegrationNotFound) {
		t.Errorf("Disconnect(missing) error = %v, want ErrIntegrationNotFound", err)
	}
}

func TestNormalizeShopDomain(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"test.myshopify.com":           "test.myshopify.com",
		" HTTPS://Test.MyShopify.com/": "test.myshopify.com",
		"http://a.myshopify.com":       "a.myshopify.com",
	}
	for in, want := range tests {
		if got := NormalizeShopDomain(in); got != want {
			t.Errorf("NormalizeShopDomain(%q) = %q, want %q", in, got, want)
		}
	}
}
