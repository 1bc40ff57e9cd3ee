package clubhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type BillingStatus string

const (
	StatusCurrent BillingStatus = "Current"
	StatusPastDue BillingStatus = "Past Due"
)

// every candidate endpoint failed; this is "could not determine", it
// must never be conflated with a zero-balance Current
var ErrUnknownStatus = fmt.Errorf("could not determine billing status from any known endpoint")

// the real list-agreements endpoint differs per deployment and was
// never documented, so every observed shape is tried in order
var agreementListCandidates = []string{
	"/api/members/%s/agreements",
	"/api/v2/member/%s/agreements",
	"/services/billing/agreements?memberId=%s",
}

const agreementBillingFormat = "/api/agreements/%s/billing"
const memberBillingFormat = "/api/members/%s/billing-status"

const livenessPath = "/home"

// agreements with this status are active and worth billing queries
const agreementStatusActive = 2

// when no agreement is flagged active, only the first few returned are
// considered
const maxFallbackAgreements = 3

type Agreement struct {
	Id     string
	Name   string
	Status int
	Active bool
}

type LineItem struct {
	Description string
	AmountCents int64
	PastDue     bool
}

type PaymentResult struct {
	MemberId     string
	Status       BillingStatus
	PastDueCents int64
	// agreements that contributed line items
	Agreements int
}

// PaymentStatus aggregates past-due amounts across the member's
// billing agreements. Status is Past Due iff any overdue line item
// summed to a positive amount, Current otherwise. ErrUnknownStatus is
// returned when no endpoint yielded data at all.
func (c *Client) PaymentStatus(ctx context.Context, memberId string) (PaymentResult, error) {
	ctx, span := tracer.Start(ctx, "client:PaymentStatus")
	defer span.End()
	span.SetAttributes(attribute.String("member_id", memberId))

	if err := c.ensureLive(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ensure session liveness")
		return PaymentResult{}, err
	}

	token, err := c.SwitchContext(ctx, memberId)
	if err != nil {
		return PaymentResult{}, err
	}

	if agreements, ok := c.listAgreements(ctx, memberId, token); ok {
		selected := selectAgreements(agreements)

		var total int64
		queried := 0
		for _, agreement := range selected {
			items, err := c.agreementBilling(ctx, agreement.Id, token)
			if err != nil {
				slog.DebugContext(
					ctx, "agreement billing fetch failed",
					"agreement_id", agreement.Id, "err", err,
				)
				continue
			}
			queried++
			for _, item := range items {
				if item.PastDue {
					total += item.AmountCents
				}
			}
		}

		if queried > 0 {
			return paymentResult(memberId, total, queried), nil
		}
	}

	total, err := c.memberBillingDirect(ctx, memberId, token)
	if err != nil {
		slog.DebugContext(ctx, "direct member billing fallback failed", "member_id", memberId, "err", err)
		span.SetStatus(codes.Error, ErrUnknownStatus.Error())
		return PaymentResult{}, ErrUnknownStatus
	}
	return paymentResult(memberId, total, 0), nil
}

func paymentResult(memberId string, pastDueCents int64, agreements int) PaymentResult {
	status := StatusCurrent
	if pastDueCents > 0 {
		status = StatusPastDue
	}
	return PaymentResult{
		MemberId:     memberId,
		Status:       status,
		PastDueCents: pastDueCents,
		Agreements:   agreements,
	}
}

// pings a cheap page and re-authenticates when the server bounced the
// session back to the login form
func (c *Client) ensureLive(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:ensureLive")
	defer span.End()

	if c.lastLoginAt.IsZero() {
		return c.Authenticate(ctx, false)
	}

	res, err := c.http.R().
		SetContext(ctx).
		Get(livenessPath)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return err
	}
	if c.classifier.IsLoginPage(finalUrl(res), doc) {
		span.AddEvent("session expired, re-authenticating")
		return c.Authenticate(ctx, true)
	}
	return nil
}

// issues a GET with the bearer token; on 401/403 it retries once with
// the raw-token header encoding since the server is inconsistent about
// which one it expects. with an empty token the request goes out
// cookie-only.
func (c *Client) getJson(ctx context.Context, endpoint, token string) ([]byte, int, error) {
	headerAttempts := []string{""}
	if token != "" {
		headerAttempts = []string{"Bearer " + token, token}
	}

	var lastStatus int
	for _, header := range headerAttempts {
		req := c.http.R().SetContext(ctx)
		if header != "" {
			req.SetHeader("Authorization", header)
		}
		res, err := req.Get(endpoint)
		if err != nil {
			return nil, 0, err
		}
		lastStatus = res.StatusCode()
		if lastStatus == 401 || lastStatus == 403 {
			continue
		}
		return res.Body(), lastStatus, nil
	}
	return nil, lastStatus, nil
}

type agreementJson struct {
	Id          json.Number `json:"id"`
	AgreementId json.Number `json:"agreementId"`
	Name        string      `json:"name"`
	Status      int         `json:"status"`
	Active      bool        `json:"active"`
}

// responses come back either as a bare array or wrapped under one of a
// few envelope keys
func parseAgreements(body []byte) ([]Agreement, error) {
	var raw []agreementJson
	if err := json.Unmarshal(body, &raw); err != nil {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		found := false
		for _, key := range []string{"results", "agreements", "data"} {
			if inner, ok := wrapped[key]; ok {
				if err := json.Unmarshal(inner, &raw); err != nil {
					return nil, err
				}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no recognizable agreement collection in response")
		}
	}

	out := make([]Agreement, 0, len(raw))
	for _, a := range raw {
		id := a.AgreementId.String()
		if id == "" {
			id = a.Id.String()
		}
		if id == "" {
			continue
		}
		out = append(out, Agreement{
			Id:     id,
			Name:   a.Name,
			Status: a.Status,
			Active: a.Active,
		})
	}
	return out, nil
}

func (c *Client) listAgreements(ctx context.Context, memberId, token string) ([]Agreement, bool) {
	ctx, span := tracer.Start(ctx, "client:listAgreements")
	defer span.End()

	for _, shape := range agreementListCandidates {
		endpoint := fmt.Sprintf(shape, url.PathEscape(memberId))

		body, status, err := c.getJson(ctx, endpoint, token)
		if err != nil || status >= 400 {
			slog.DebugContext(
				ctx, "agreement list candidate failed",
				"endpoint", endpoint, "status", status, "err", err,
			)
			continue
		}

		agreements, err := parseAgreements(body)
		if err != nil {
			slog.DebugContext(ctx, "agreement list candidate unparseable", "endpoint", endpoint, "err", err)
			continue
		}
		// empty results are indistinguishable from the wrong endpoint
		// shape, keep cascading
		if len(agreements) == 0 {
			continue
		}

		span.SetAttributes(
			attribute.String("endpoint", endpoint),
			attribute.Int("agreements", len(agreements)),
		)
		return agreements, true
	}

	span.SetStatus(codes.Ok, "all candidates exhausted")
	return nil, false
}

func selectAgreements(agreements []Agreement) []Agreement {
	var active []Agreement
	for _, a := range agreements {
		if a.Status == agreementStatusActive || a.Active {
			active = append(active, a)
		}
	}
	if len(active) > 0 {
		return active
	}
	if len(agreements) > maxFallbackAgreements {
		return agreements[:maxFallbackAgreements]
	}
	return agreements
}

type lineItemJson struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	PastDue     bool    `json:"pastDue"`
	Overdue     bool    `json:"overdue"`
}

func dollarsToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *Client) agreementBilling(ctx context.Context, agreementId, token string) ([]LineItem, error) {
	body, status, err := c.getJson(ctx, fmt.Sprintf(agreementBillingFormat, url.PathEscape(agreementId)), token)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("agreement billing returned status %d", status)
	}

	var raw []lineItemJson
	if err := json.Unmarshal(body, &raw); err != nil {
		var wrapped struct {
			Items []lineItemJson `json:"items"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		raw = wrapped.Items
	}

	items := make([]LineItem, len(raw))
	for i, item := range raw {
		items[i] = LineItem{
			Description: item.Description,
			AmountCents: dollarsToCents(item.Amount),
			PastDue:     item.PastDue || item.Overdue,
		}
	}
	return items, nil
}

func (c *Client) memberBillingDirect(ctx context.Context, memberId, token string) (int64, error) {
	body, status, err := c.getJson(ctx, fmt.Sprintf(memberBillingFormat, url.PathEscape(memberId)), token)
	if err != nil {
		return 0, err
	}
	if status >= 400 {
		return 0, fmt.Errorf("member billing status returned %d", status)
	}

	var raw struct {
		PastDueAmount *float64 `json:"pastDueAmount"`
		PastDue       *float64 `json:"past_due"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, err
	}
	switch {
	case raw.PastDueAmount != nil:
		return dollarsToCents(*raw.PastDueAmount), nil
	case raw.PastDue != nil:
		return dollarsToCents(*raw.PastDue), nil
	}
	return 0, fmt.Errorf("no past-due amount in member billing response")
}
