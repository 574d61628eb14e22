package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tovald/pageflow/internal/app/model"
)

// HitArchive is the append-only analytical event store behind the stream
// sink. Session attributes are embedded per row, so there is no companion
// sessions table on this path.
type HitArchive struct {
	pool *pgxpool.Pool
}

// NewHitArchive returns an archive writing through the given pool.
func NewHitArchive(pool *pgxpool.Pool) *HitArchive {
	return &HitArchive{pool: pool}
}

// EnsureSchema creates the archive table when missing. Events carry their own
// primary key, so replayed stream deliveries are dropped on conflict.
func (a *HitArchive) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS hit_archive (
	id              uuid PRIMARY KEY,
	website_id      uuid NOT NULL,
	session_id      uuid NOT NULL,
	visit_id        uuid NOT NULL,
	event_type      varchar(16) NOT NULL,
	created_at      timestamptz NOT NULL,
	hostname        varchar(100),
	page_title      varchar(500),
	url_path        varchar(500),
	url_query       varchar(500),
	referrer_path   varchar(500),
	referrer_query  varchar(500),
	referrer_domain varchar(500),
	utm_source      varchar(200),
	utm_medium      varchar(200),
	utm_campaign    varchar(200),
	utm_content     varchar(200),
	utm_term        varchar(200),
	gclid           varchar(200),
	fbclid          varchar(200),
	msclkid         varchar(200),
	ttclid          varchar(200),
	li_fat_id       varchar(200),
	twclid          varchar(200),
	event_name      varchar(50),
	event_data      jsonb,
	tag             varchar(50),
	browser         varchar(50),
	os              varchar(50),
	device          varchar(50),
	screen          varchar(11),
	language        varchar(35),
	country         varchar(50),
	region          varchar(50),
	city            varchar(50),
	distinct_id     varchar(50)
);
CREATE INDEX IF NOT EXISTS idx_hit_archive_website_created ON hit_archive (website_id, created_at);`

	if _, err := a.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("hit archive: ensure schema: %w", err)
	}
	return nil
}

var archiveColumns = []string{
	"id", "website_id", "session_id", "visit_id", "event_type", "created_at",
	"hostname", "page_title", "url_path", "url_query",
	"referrer_path", "referrer_query", "referrer_domain",
	"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
	"gclid", "fbclid", "msclkid", "ttclid", "li_fat_id", "twclid",
	"event_name", "event_data", "tag",
	"browser", "os", "device", "screen", "language",
	"country", "region", "city", "distinct_id",
}

// InsertBatch appends events with ON CONFLICT DO NOTHING so redelivered
// stream messages stay idempotent. Returns the number of rows written.
func (a *HitArchive) InsertBatch(ctx context.Context, events []model.WebsiteEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*len(archiveColumns))

	argi := 1
	for _, ev := range events {
		ph := make([]string, 0, len(archiveColumns))
		for _, v := range []any{
			ev.ID, ev.WebsiteID, ev.SessionID, ev.VisitID, ev.EventType, ev.CreatedAt,
			nullable(ev.Hostname), nullable(ev.PageTitle), nullable(ev.URLPath), nullable(ev.URLQuery),
			nullable(ev.ReferrerPath), nullable(ev.ReferrerQuery), nullable(ev.ReferrerDomain),
			nullable(ev.UTMSource), nullable(ev.UTMMedium), nullable(ev.UTMCampaign), nullable(ev.UTMContent), nullable(ev.UTMTerm),
			nullable(ev.Gclid), nullable(ev.Fbclid), nullable(ev.Msclkid), nullable(ev.Ttclid), nullable(ev.LiFatID), nullable(ev.Twclid),
			nullable(ev.EventName), nullable(ev.EventData), nullable(ev.Tag),
			nullable(ev.Browser), nullable(ev.OS), nullable(ev.Device), nullable(ev.Screen), nullable(ev.Language),
			nullable(ev.Country), nullable(ev.Region), nullable(ev.City), nullable(ev.DistinctID),
		} {
			args = append(args, v)
			ph = append(ph, fmt.Sprintf("$%d", argi))
			argi++
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")
	}

	sql := "INSERT INTO hit_archive (" + strings.Join(archiveColumns, ",") + ") VALUES " +
		strings.Join(placeholders, ",") +
		" ON CONFLICT DO NOTHING"

	ct, err := a.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("hit archive: insert batch: %w", err)
	}
	return ct.RowsAffected(), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
