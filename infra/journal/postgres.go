package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/giovaniif/court-booking/infra"
	"github.com/giovaniif/court-booking/infra/gateways"
	protocols "github.com/giovaniif/court-booking/protocols"
)

// Postgres appends every service event to a table. Rows are never read back
// by the service.
type Postgres struct {
	db      *sql.DB
	table   string
	sleeper protocols.Sleeper
}

func OpenPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := NewPostgres(db, table)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgres(db *sql.DB, table string) *Postgres {
	return &Postgres{db: db, table: pq.QuoteIdentifier(table), sleeper: gateways.NewSleeper()}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+p.table+` (
		id             BIGSERIAL PRIMARY KEY,
		sequence       BIGINT      NOT NULL DEFAULT 0,
		type           TEXT        NOT NULL,
		reservation_id TEXT,
		court_id       INTEGER     NOT NULL,
		starts_at      TIMESTAMPTZ,
		duration_hours INTEGER,
		lights_on      BOOLEAN     NOT NULL DEFAULT FALSE,
		occurred_at    TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Publish(ctx context.Context, event protocols.Event) error {
	insert := gateways.RetryWithBackoff(func(ctx context.Context) error {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO `+p.table+` (sequence, type, reservation_id, court_id, starts_at, duration_hours, lights_on, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			int64(event.Sequence),
			event.Type,
			sql.NullString{String: event.ReservationId, Valid: event.ReservationId != ""},
			event.CourtId,
			sql.NullTime{Time: event.Timestamp, Valid: !event.Timestamp.IsZero()},
			sql.NullInt64{Int64: int64(event.DurationHours), Valid: event.ReservationId != ""},
			event.LightsOn,
			event.OccurredAt,
		)
		return classifyPostgresError(err)
	}, p.sleeper)
	return insert(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// classifyPostgresError marks connection failures as retriable. Errors raised
// by the server for the statement itself are returned unchanged.
func classifyPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return infra.NewTimeoutError("postgres insert")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" {
			return infra.NewUnavailableError("postgres insert", err)
		}
		return fmt.Errorf("postgres insert: %w", err)
	}
	return infra.NewUnavailableError("postgres insert", err)
}
