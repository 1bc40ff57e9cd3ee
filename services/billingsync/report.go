package billingsync

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"gymops-backend/lib/scrapers/clubhub"
	"gymops-backend/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
}

// PastDueReport renders the cached past-due members as a table. the
// report reads only the cache, run a Sweep first for fresh numbers.
func (s Service) PastDueReport(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "PastDueReport")
	defer span.End()

	records, err := s.store.ListByStatus(ctx, string(clubhub.StatusPastDue))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list past-due records")
		return "", err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Member", "Name", "Past Due", "Checked At"})

	var totalCents int64
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.MemberId,
			rec.DisplayName,
			formatCents(rec.PastDueCents),
			rec.CheckedAt.In(timezone.Location).Format("2006-01-02 15:04"),
		})
		totalCents += rec.PastDueCents
	}
	t.AppendFooter(table.Row{"", "Total", formatCents(totalCents), ""})

	return t.Render(), nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// EmailReport sends the rendered report to the given recipients.
func (s Service) EmailReport(ctx context.Context, config SmtpConfig, recipients []string, report string) error {
	ctx, span := tracer.Start(ctx, "EmailReport")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("GymOps <%s>", config.EmailAddress)
	mail.To = recipients
	mail.Subject = fmt.Sprintf("Past-due report %s", timezone.Now().Format("2006-01-02"))
	mail.Text = []byte(report)

	addr := fmt.Sprintf("%s:%d", config.Server, config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", config.EmailAddress, config.Password, config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send report email")
		return err
	}
	return nil
}
