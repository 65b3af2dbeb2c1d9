package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/infrastructure/metrics"
	"taxvault-webhook-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	// DefaultAPIVersion is the pinned Admin API version
	DefaultAPIVersion = "2024-10"
	// DefaultTimeout bounds every outbound platform request
	DefaultTimeout = 30 * time.Second

	maxOrderPageSize = 250
)

// Options configures the Shopify client
type Options struct {
	APIVersion  string
	Timeout     time.Duration
	HTTPClient  *http.Client
	RateLimiter *RateLimiter
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

type client struct {
	app         goshopify.App
	apiVersion  string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewClient creates a new Shopify client adapter
func NewClient(apiKey, apiSecret string, logger zerolog.Logger) ports.ShopifyClient {
	return NewClientWithOptions(apiKey, apiSecret, Options{Logger: logger})
}

// NewClientWithOptions creates a client with rate limiting and transport options
func NewClientWithOptions(apiKey, apiSecret string, opts Options) ports.ShopifyClient {
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &client{
		app: goshopify.App{
			ApiKey:    apiKey,
			ApiSecret: apiSecret,
		},
		apiVersion:  opts.APIVersion,
		httpClient:  httpClient,
		rateLimiter: opts.RateLimiter,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// createClient is a helper to create a goshopify client bound to one shop
func (c *client) createClient(shopDomain string, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(c.app, shopDomain, accessToken,
		goshopify.WithVersion(c.apiVersion),
		goshopify.WithHTTPClient(c.httpClient),
	)
	if err != nil {
		return nil, &domain.PlatformError{Message: fmt.Sprintf("failed to create client: %v", err), Err: err}
	}
	return client, nil
}

// call waits for the shop's rate limit, runs fn once and maps its error
func (c *client) call(ctx context.Context, shop, operation string, fn func() error) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, shop); err != nil {
			c.metrics.PlatformRequest(operation, "rate_limit_wait")
			return &domain.PlatformError{Message: "rate limit wait aborted", Err: err}
		}
	}

	err := fn()
	if err == nil {
		c.metrics.PlatformRequest(operation, "ok")
		return nil
	}

	mapped := mapError(err)
	c.metrics.PlatformRequest(operation, resultLabel(mapped))
	c.logger.Warn().
		Err(mapped).
		Str("shop", shop).
		Str("operation", operation).
		Msg("Shopify request failed")
	return mapped
}

// Webhook API

func (c *client) List(ctx context.Context, shopDomain string, accessToken string) ([]domain.WebhookSubscription, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	var webhooks []goshopify.Webhook
	err = c.call(ctx, shopDomain, "webhook.list", func() error {
		var listErr error
		webhooks, listErr = client.Webhook.List(ctx, nil)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	subs := make([]domain.WebhookSubscription, 0, len(webhooks))
	for _, w := range webhooks {
		subs = append(subs, toSubscription(w))
	}
	return subs, nil
}

func (c *client) Create(ctx context.Context, shopDomain string, accessToken string, topic string, address string) (*domain.WebhookSubscription, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	webhook := goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	}
	var created *goshopify.Webhook
	err = c.call(ctx, shopDomain, "webhook.create", func() error {
		var createErr error
		created, createErr = client.Webhook.Create(ctx, webhook)
		return createErr
	})
	if err != nil {
		return nil, err
	}
	sub := toSubscription(*created)
	return &sub, nil
}

func (c *client) Delete(ctx context.Context, shopDomain string, accessToken string, subscriptionID string) error {
	id, err := strconv.ParseUint(subscriptionID, 10, 64)
	if err != nil {
		return domain.NewValidationError("subscriptionId", "must be a numeric webhook id")
	}
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return err
	}
	err = c.call(ctx, shopDomain, "webhook.delete", func() error {
		return client.Webhook.Delete(ctx, id)
	})
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// Shop API

func (c *client) GetShop(ctx context.Context, shopDomain string, accessToken string) (*domain.ShopInfo, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	var shop *goshopify.Shop
	err = c.call(ctx, shopDomain, "shop.get", func() error {
		var getErr error
		shop, getErr = client.Shop.Get(ctx, nil)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return &domain.ShopInfo{
		Domain:        shop.Domain,
		Email:         shop.Email,
		CustomerEmail: shop.CustomerEmail,
		ShopOwner:     shop.ShopOwner,
	}, nil
}

// Order API

// orderListOptions mirrors the orders.json query string. Shopify rejects filters
// alongside page_info, so continuation pages only carry Limit and PageInfo.
type orderListOptions struct {
	Status       string    `url:"status,omitempty"`
	CreatedAtMin time.Time `url:"created_at_min,omitempty"`
	CreatedAtMax time.Time `url:"created_at_max,omitempty"`
	Limit        int       `url:"limit,omitempty"`
	PageInfo     string    `url:"page_info,omitempty"`
}

func listOptions(query ports.OrderQuery) orderListOptions {
	limit := query.Limit
	if limit <= 0 || limit > maxOrderPageSize {
		limit = maxOrderPageSize
	}
	if query.Cursor != "" {
		return orderListOptions{Limit: limit, PageInfo: query.Cursor}
	}
	return orderListOptions{
		Status:       "any",
		CreatedAtMin: query.CreatedAtMin,
		CreatedAtMax: query.CreatedAtMax,
		Limit:        limit,
	}
}

func (c *client) CountOrders(ctx context.Context, shopDomain string, accessToken string, query ports.OrderQuery) (int, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return 0, err
	}
	opts := listOptions(ports.OrderQuery{CreatedAtMin: query.CreatedAtMin, CreatedAtMax: query.CreatedAtMax})
	opts.Limit = 0
	var count int
	err = c.call(ctx, shopDomain, "order.count", func() error {
		var countErr error
		count, countErr = client.Order.Count(ctx, opts)
		return countErr
	})
	return count, err
}

func (c *client) ListOrders(ctx context.Context, shopDomain string, accessToken string, query ports.OrderQuery) (*ports.OrderPage, error) {
	client, err := c.createClient(shopDomain, accessToken)
	if err != nil {
		return nil, err
	}
	var (
		orders     []goshopify.Order
		pagination *goshopify.Pagination
	)
	err = c.call(ctx, shopDomain, "order.list", func() error {
		var listErr error
		orders, pagination, listErr = client.Order.ListWithPagination(ctx, listOptions(query))
		return listErr
	})
	if err != nil {
		return nil, err
	}

	page := &ports.OrderPage{Orders: make([]domain.ShopifyOrder, 0, len(orders))}
	for i := range orders {
		order, err := toShopifyOrder(&orders[i])
		if err != nil {
			page.Failures = append(page.Failures, ports.OrderFailure{
				ExternalID: strconv.FormatUint(orders[i].Id, 10),
				Err:        err,
			})
			continue
		}
		page.Orders = append(page.Orders, *order)
	}
	if pagination != nil && pagination.NextPageOptions != nil {
		page.NextCursor = pagination.NextPageOptions.PageInfo
	}
	return page, nil
}

// toShopifyOrder re-encodes a listed order into the webhook order shape so that
// imports and webhooks share one reconciliation path
func toShopifyOrder(order *goshopify.Order) (*domain.ShopifyOrder, error) {
	raw, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	parsed, err := domain.ParseShopifyOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert order: %w", err)
	}
	return parsed, nil
}

func toSubscription(w goshopify.Webhook) domain.WebhookSubscription {
	return domain.WebhookSubscription{
		ID:      strconv.FormatUint(w.Id, 10),
		Topic:   w.Topic,
		Address: w.Address,
		Format:  w.Format,
	}
}

// mapError converts go-shopify and transport errors into the domain taxonomy
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rateLimited goshopify.RateLimitError
	if errors.As(err, &rateLimited) {
		return &domain.RateLimitedError{
			RetryAfter: time.Duration(rateLimited.RetryAfter) * time.Second,
			Message:    rateLimited.Error(),
		}
	}
	var rateLimitedPtr *goshopify.RateLimitError
	if errors.As(err, &rateLimitedPtr) && rateLimitedPtr != nil {
		return &domain.RateLimitedError{
			RetryAfter: time.Duration(rateLimitedPtr.RetryAfter) * time.Second,
			Message:    rateLimitedPtr.Error(),
		}
	}

	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return fromStatus(respErr.Status, respErr.Error(), err)
	}
	var respErrPtr *goshopify.ResponseError
	if errors.As(err, &respErrPtr) && respErrPtr != nil {
		return fromStatus(respErrPtr.Status, respErrPtr.Error(), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.PlatformError{Message: "request timed out", Err: err}
	}
	return &domain.PlatformError{Message: err.Error(), Err: err}
}

func fromStatus(status int, message string, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &domain.AuthError{Status: status, Message: message}
	case status == http.StatusNotFound:
		return &domain.NotFoundError{Message: message}
	case status == http.StatusTooManyRequests:
		return &domain.RateLimitedError{Message: message}
	default:
		return &domain.PlatformError{Status: status, Message: message, Err: err}
	}
}

func resultLabel(err error) string {
	var (
		authErr     *domain.AuthError
		notFound    *domain.NotFoundError
		rateLimited *domain.RateLimitedError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &rateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}
