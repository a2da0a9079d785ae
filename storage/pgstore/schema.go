package pgstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuvex/nuvex/internal/xerrors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier enforces I6: every identifier interpolated into L3
// DDL/DML must match ^[A-Za-z_][A-Za-z0-9_]*$.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return xerrors.Newf(xerrors.SchemaInvalidIdentifier, "pgstore: invalid identifier %q", name)
	}
	return nil
}

// Schema names the table and columns the L3 store is backed by.
type Schema struct {
	TableName   string
	KeyColumn   string
	ValueColumn string

	// FuzzySearch installs a trigram GIN index on KeyColumn via pg_trgm.
	FuzzySearch bool

	// ScheduleCleanup installs a pg_cron job invoking the generated cleanup
	// function on CronSchedule (every 15 minutes when empty). If pg_cron is
	// unavailable, Setup fails hard.
	ScheduleCleanup bool
	CronSchedule    string // e.g. "*/5 * * * *"
}

// Validate checks all three configured identifiers against I6.
func (s Schema) Validate() error {
	if err := ValidateIdentifier(s.TableName); err != nil {
		return err
	}
	if err := ValidateIdentifier(s.KeyColumn); err != nil {
		return err
	}
	if err := ValidateIdentifier(s.ValueColumn); err != nil {
		return err
	}
	return nil
}

func (s Schema) triggerFunctionName() string { return "touch_updated_at_" + s.TableName }
func (s Schema) triggerName() string         { return "trg_touch_updated_at_" + s.TableName }
func (s Schema) cleanupFunctionName() string { return "cleanup_expired_" + s.TableName }
func (s Schema) cronJobName() string         { return "nuvex_cleanup_" + s.TableName }

// Manager applies a Schema's DDL against a pool.
type Manager struct {
	pool   *pgxpool.Pool
	schema Schema
}

// NewManager returns a Manager bound to pool and schema. The schema is not
// validated until Setup is called.
func NewManager(pool *pgxpool.Pool, schema Schema) *Manager {
	return &Manager{pool: pool, schema: schema}
}

// Setup validates identifiers and applies the full DDL: table, partial
// index, optional trigram index, updated_at trigger, cleanup function, and
// optional pg_cron schedule.
func (m *Manager) Setup(ctx context.Context) error {
	if err := m.schema.Validate(); err != nil {
		return err
	}
	s := m.schema

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			%s TEXT UNIQUE NOT NULL,
			%s JSONB NOT NULL,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.TableName, s.KeyColumn, s.ValueColumn),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s (expires_at) WHERE expires_at IS NOT NULL`,
			s.TableName, s.TableName),

		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s() RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = now();
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`, s.triggerFunctionName()),

		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, s.triggerName(), s.TableName),

		fmt.Sprintf(`CREATE TRIGGER %s BEFORE UPDATE ON %s
			FOR EACH ROW EXECUTE FUNCTION %s()`,
			s.triggerName(), s.TableName, s.triggerFunctionName()),

		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s() RETURNS INTEGER AS $$
		DECLARE
			purged INTEGER;
		BEGIN
			DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < now();
			GET DIAGNOSTICS purged = ROW_COUNT;
			RETURN purged;
		END;
		$$ LANGUAGE plpgsql`, s.cleanupFunctionName(), s.TableName),
	}

	for _, stmt := range stmts {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return xerrors.Wrap(err, xerrors.SchemaSetup, "pgstore: schema setup failed")
		}
	}

	if s.FuzzySearch {
		if _, err := m.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`); err != nil {
			return xerrors.Wrap(err, xerrors.SchemaSetup, "pgstore: pg_trgm extension unavailable")
		}
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s_trgm ON %s USING GIN (%s gin_trgm_ops)`,
			s.TableName, s.KeyColumn, s.TableName, s.KeyColumn)
		if _, err := m.pool.Exec(ctx, idx); err != nil {
			return xerrors.Wrap(err, xerrors.SchemaSetup, "pgstore: trigram index failed")
		}
	}

	if s.ScheduleCleanup {
		if err := m.scheduleCleanup(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) scheduleCleanup(ctx context.Context) error {
	s := m.schema
	var extensionPresent bool
	err := m.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'pg_cron')`).Scan(&extensionPresent)
	if err != nil {
		return xerrors.Wrap(err, xerrors.SchemaSetup, "pgstore: checking pg_cron availability")
	}
	if !extensionPresent {
		return xerrors.Newf(xerrors.SchemaSetup, "pgstore: pg_cron extension not installed, cannot schedule cleanup job %s", s.cronJobName())
	}

	schedule := s.CronSchedule
	if schedule == "" {
		schedule = "*/15 * * * *"
	}

	_, err = m.pool.Exec(ctx,
		`SELECT cron.schedule($1, $2, $3)`,
		s.cronJobName(), schedule, fmt.Sprintf("SELECT %s()", s.cleanupFunctionName()))
	if err != nil {
		return xerrors.Wrap(err, xerrors.SchemaSetup, "pgstore: scheduling cleanup job failed")
	}
	return nil
}
