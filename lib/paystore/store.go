// Package paystore caches the billing status read out of the vendor
// portal. the portal is slow and flaky, so the last known answer for
// each member is kept locally and served when a fresh read fails.
package paystore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gymops-backend/lib/paystore/db"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var ErrNotCached = errors.New("no cached billing record for member")

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

type Record struct {
	MemberId     string
	DisplayName  string
	Status       string
	PastDueCents int64
	CheckedAt    time.Time
}

func (s Store) Put(ctx context.Context, rec Record) error {
	return s.qry.UpsertMemberBilling(ctx, db.UpsertMemberBillingParams{
		MemberID:     rec.MemberId,
		DisplayName:  rec.DisplayName,
		Status:       rec.Status,
		PastDueCents: rec.PastDueCents,
		CheckedAt:    rec.CheckedAt.Unix(),
	})
}

func (s Store) Get(ctx context.Context, memberId string) (Record, error) {
	row, err := s.qry.GetMemberBilling(ctx, memberId)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotCached
	}
	if err != nil {
		return Record{}, err
	}
	return recordFromRow(row), nil
}

func (s Store) ListByStatus(ctx context.Context, status string) ([]Record, error) {
	rows, err := s.qry.ListMemberBillingByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = recordFromRow(row)
	}
	return records, nil
}

// PurgeBefore drops records last checked before the cutoff. stale
// cache entries are worse than none once members churn.
func (s Store) PurgeBefore(ctx context.Context, cutoff time.Time) error {
	return s.qry.DeleteMemberBillingBefore(ctx, cutoff.Unix())
}

func recordFromRow(row db.MemberBilling) Record {
	return Record{
		MemberId:     row.MemberID,
		DisplayName:  row.DisplayName,
		Status:       row.Status,
		PastDueCents: row.PastDueCents,
		CheckedAt:    time.Unix(row.CheckedAt, 0),
	}
}
