// Package invoicer talks to the payment processor's REST API. unlike
// the vendor portal this one is documented, so there is no endpoint
// probing here, just a plain bearer-token JSON client.
package invoicer

import (
	"context"
	"fmt"
	"time"

	"gymops-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("invoicer")

type Client struct {
	http *resty.Client
}

type Options struct {
	BaseUrl  string
	ApiToken string

	// defaults to 30 seconds
	Timeout time.Duration
	// nil means restyutil.DefaultRetryPolicy
	Retry *restyutil.RetryPolicy
}

func NewClient(opts Options) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}

	client := resty.New().
		SetBaseURL(opts.BaseUrl).
		SetTimeout(timeout).
		SetAuthToken(opts.ApiToken).
		SetHeader("Accept", "application/json")

	retry := opts.Retry
	if retry == nil {
		policy := restyutil.DefaultRetryPolicy()
		retry = &policy
	}
	restyutil.ApplyRetryPolicy(client, *retry)

	return &Client{http: client}, nil
}

type Invoice struct {
	Id          string `json:"id"`
	MemberId    string `json:"memberId"`
	AmountCents int64  `json:"amountCents"`
	Memo        string `json:"memo"`
	Status      string `json:"status"`
}

type createInvoiceRequest struct {
	MemberId    string `json:"memberId"`
	AmountCents int64  `json:"amountCents"`
	Memo        string `json:"memo"`
}

// CreateInvoice opens an invoice for the member. the request carries a
// random idempotency key so a retried submit cannot double-bill.
func (c *Client) CreateInvoice(ctx context.Context, memberId string, amountCents int64, memo string) (Invoice, error) {
	ctx, span := tracer.Start(ctx, "invoicer:CreateInvoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("member_id", memberId),
		attribute.Int64("amount_cents", amountCents),
	)

	if amountCents <= 0 {
		return Invoice{}, fmt.Errorf("refusing to create an invoice for %d cents", amountCents)
	}

	key, err := random.String(24)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate idempotency key")
		return Invoice{}, err
	}

	var invoice Invoice
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", key).
		SetBody(createInvoiceRequest{
			MemberId:    memberId,
			AmountCents: amountCents,
			Memo:        memo,
		}).
		SetResult(&invoice).
		Post("/v1/invoices")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit invoice")
		return Invoice{}, err
	}
	if res.IsError() {
		err := fmt.Errorf("create invoice returned status %d: %s", res.StatusCode(), res.String())
		span.SetStatus(codes.Error, err.Error())
		return Invoice{}, err
	}

	return invoice, nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	ctx, span := tracer.Start(ctx, "invoicer:GetInvoice")
	defer span.End()

	var invoice Invoice
	res, err := c.http.R().
		SetContext(ctx).
		SetResult(&invoice).
		Get("/v1/invoices/" + id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch invoice")
		return Invoice{}, err
	}
	if res.IsError() {
		return Invoice{}, fmt.Errorf("get invoice returned status %d", res.StatusCode())
	}
	return invoice, nil
}
