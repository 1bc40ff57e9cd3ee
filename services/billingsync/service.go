// Package billingsync keeps the local billing cache in step with the
// vendor portal and drives follow-up actions off it.
package billingsync

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gymops-backend/lib/invoicer"
	"gymops-backend/lib/paystore"
	"gymops-backend/lib/scrapers/clubhub"
	"gymops-backend/lib/timezone"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/billingsync")

var ErrNothingOwed = fmt.Errorf("member has no past-due balance to invoice")

// bare numeric references are portal identifiers, everything else goes
// through the directory
var memberIdPattern = regexp.MustCompile(`^\d+$`)

type Options struct {
	Portal *clubhub.Client
	Store  paystore.Store
	// optional, InvoicePastDue errors without it
	Invoicer *invoicer.Client
}

type Service struct {
	portal   *clubhub.Client
	store    paystore.Store
	invoicer *invoicer.Client
}

func NewService(opts Options) Service {
	return Service{
		portal:   opts.Portal,
		store:    opts.Store,
		invoicer: opts.Invoicer,
	}
}

type CheckResult struct {
	MemberId     string
	DisplayName  string
	Status       clubhub.BillingStatus
	PastDueCents int64
	CheckedAt    time.Time
	// true when the portal read failed and this came from the cache
	Stale bool
}

func (s Service) resolveRef(ctx context.Context, ref string) (id, display string, err error) {
	ref = strings.TrimSpace(ref)
	if memberIdPattern.MatchString(ref) {
		return ref, "", nil
	}

	query := clubhub.LookupQuery{Name: ref}
	if strings.Contains(ref, "@") {
		query = clubhub.LookupQuery{Email: ref}
	}
	id, err = s.portal.Lookup(ctx, query)
	if err != nil {
		return "", "", err
	}
	return id, ref, nil
}

// CheckMember resolves a member reference (portal id, name or email)
// and reads their billing status. when the portal read fails but a
// cached record exists, the cached record is returned marked stale
// rather than surfacing the error.
func (s Service) CheckMember(ctx context.Context, ref string) (CheckResult, error) {
	ctx, span := tracer.Start(ctx, "CheckMember")
	defer span.End()
	span.SetAttributes(attribute.String("ref", ref))

	id, display, err := s.resolveRef(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve member reference")
		return CheckResult{}, err
	}

	payment, err := s.portal.PaymentStatus(ctx, id)
	if err != nil {
		cached, cacheErr := s.store.Get(ctx, id)
		if cacheErr != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "portal read failed with no cached fallback")
			return CheckResult{}, err
		}
		slog.WarnContext(
			ctx, "portal read failed, serving cached billing record",
			"member_id", id, "err", err,
		)
		span.SetAttributes(attribute.Bool("stale", true))
		return CheckResult{
			MemberId:     cached.MemberId,
			DisplayName:  cached.DisplayName,
			Status:       clubhub.BillingStatus(cached.Status),
			PastDueCents: cached.PastDueCents,
			CheckedAt:    cached.CheckedAt,
			Stale:        true,
		}, nil
	}

	result := CheckResult{
		MemberId:     id,
		DisplayName:  display,
		Status:       payment.Status,
		PastDueCents: payment.PastDueCents,
		CheckedAt:    timezone.Now(),
	}
	if result.DisplayName == "" {
		if cached, err := s.store.Get(ctx, id); err == nil {
			result.DisplayName = cached.DisplayName
		}
	}

	err = s.store.Put(ctx, paystore.Record{
		MemberId:     result.MemberId,
		DisplayName:  result.DisplayName,
		Status:       string(result.Status),
		PastDueCents: result.PastDueCents,
		CheckedAt:    result.CheckedAt,
	})
	if err != nil {
		// the live answer is still good, a cache write failure only
		// costs the next fallback
		slog.WarnContext(ctx, "failed to cache billing record", "member_id", id, "err", err)
	}

	return result, nil
}

type SweepOutcome struct {
	Ref    string
	Result CheckResult
	Err    error
}

// Sweep checks a batch of members one after another. the portal's
// delegation context lives on the session, so the batch must stay on
// this goroutine; parallelism comes from running sweeps on separate
// clients, not from splitting one.
func (s Service) Sweep(ctx context.Context, refs []string) ([]SweepOutcome, error) {
	ctx, span := tracer.Start(ctx, "Sweep")
	defer span.End()
	span.SetAttributes(attribute.Int("members", len(refs)))

	outcomes := make([]SweepOutcome, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		result, err := s.CheckMember(ctx, ref)
		outcomes = append(outcomes, SweepOutcome{
			Ref:    ref,
			Result: result,
			Err:    err,
		})
	}
	return outcomes, nil
}

// InvoicePastDue checks the member and opens an invoice for their
// aggregated past-due balance. stale cached results are not invoiced,
// billing on stale data is how double-charges happen.
func (s Service) InvoicePastDue(ctx context.Context, ref, memo string) (invoicer.Invoice, CheckResult, error) {
	ctx, span := tracer.Start(ctx, "InvoicePastDue")
	defer span.End()

	if s.invoicer == nil {
		return invoicer.Invoice{}, CheckResult{}, fmt.Errorf("no payment processor client configured")
	}

	result, err := s.CheckMember(ctx, ref)
	if err != nil {
		return invoicer.Invoice{}, CheckResult{}, err
	}
	if result.Stale {
		return invoicer.Invoice{}, result, fmt.Errorf("billing status for %q is stale, refusing to invoice", ref)
	}
	if result.Status != clubhub.StatusPastDue || result.PastDueCents <= 0 {
		return invoicer.Invoice{}, result, ErrNothingOwed
	}

	invoice, err := s.invoicer.CreateInvoice(ctx, result.MemberId, result.PastDueCents, memo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create invoice")
		return invoicer.Invoice{}, result, err
	}
	span.SetAttributes(attribute.String("invoice_id", invoice.Id))
	return invoice, result, nil
}
