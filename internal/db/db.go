// Package db provides a pgxpool-based connection pool with prepared statement
// registration, goose migrations, and health checking.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"

	"github.com/fiveaside/matchpulse/internal/config"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Migrate applies all pending goose migrations. Runs over a database/sql
// handle because goose does not speak pgx natively.
func Migrate(ctx context.Context, cfg *config.Config) error {
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// fixtureSources maps statement suffixes to the fixture/pick table pairs.
// Order matters elsewhere (resolution priority); here it only drives
// statement registration.
var fixtureSources = map[string]struct{ fixtures, picks string }{
	"main":   {"fixtures", "picks"},
	"test":   {"fixtures_test", "picks_test"},
	"casual": {"fixtures_casual", "picks_casual"},
}

// registerPreparedStatements registers all statements the webhook and
// diagnostic layers use. Prepared statements eliminate parse overhead on
// every delivery.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Notification state (idempotency row, one per match)
		"state_get": `SELECT match_id, home_score, away_score, status, signature, goals, notified_at
			FROM match_notification_state WHERE match_id = $1`,
		"state_upsert": `INSERT INTO match_notification_state
				(match_id, home_score, away_score, status, signature, goals, notified_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (match_id) DO UPDATE SET
				home_score = EXCLUDED.home_score,
				away_score = EXCLUDED.away_score,
				status = EXCLUDED.status,
				signature = EXCLUDED.signature,
				goals = EXCLUDED.goals,
				notified_at = EXCLUDED.notified_at`,

		// Live scores (read-only here; written by the ingest feed)
		"live_status_for_matches": `SELECT match_id, status, home_score, away_score
			FROM live_scores WHERE match_id = ANY($1)`,

		// Audience
		"active_tokens_for_users": `SELECT user_id, device_token FROM subscriptions
			WHERE active AND user_id = ANY($1)`,
		"prefs_for_users": `SELECT user_id, enabled FROM notification_preferences
			WHERE notification_key = $1 AND user_id = ANY($2)`,

		// Round completion
		"round_results_exist": "SELECT EXISTS (SELECT 1 FROM round_results WHERE round_number = $1)",
		"round_result_insert": `INSERT INTO round_results (round_number, fixture_index, outcome)
			VALUES ($1, $2, $3)
			ON CONFLICT (round_number, fixture_index) DO NOTHING`,
		"round_marker_since": "SELECT EXISTS (SELECT 1 FROM round_markers WHERE round_number = $1 AND sent_at > $2)",
		"round_marker_upsert": `INSERT INTO round_markers (round_number, sent_at) VALUES ($1, $2)
			ON CONFLICT (round_number) DO UPDATE SET sent_at = EXCLUDED.sent_at`,

		// Delivery log
		"delivery_log_insert": `INSERT INTO notification_log
				(id, match_id, event_kind, signature, title, accepted, failed, skipped, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	}

	// Per-source fixture and pick statements. The three sources are
	// parallel table pairs, so the SQL differs only by table name.
	for suffix, tables := range fixtureSources {
		stmts["fixture_by_match_"+suffix] = fmt.Sprintf(
			`SELECT fixture_index, round_number, home_team, away_team, match_id
				FROM %s WHERE match_id = $1`, tables.fixtures)
		stmts["fixtures_by_round_"+suffix] = fmt.Sprintf(
			`SELECT fixture_index, round_number, home_team, away_team, match_id
				FROM %s WHERE round_number = $1 AND match_id IS NOT NULL AND match_id <> ''
				ORDER BY fixture_index`, tables.fixtures)
		stmts["pick_users_"+suffix] = fmt.Sprintf(
			`SELECT user_id, selection FROM %s
				WHERE fixture_index = $1 AND round_number = $2`, tables.picks)
		stmts["round_pick_users_"+suffix] = fmt.Sprintf(
			"SELECT DISTINCT user_id FROM %s WHERE round_number = $1", tables.picks)
		stmts["pick_breakdown_"+suffix] = fmt.Sprintf(
			`SELECT selection, COUNT(*) FROM %s
				WHERE fixture_index = $1 AND round_number = $2 GROUP BY selection`, tables.picks)
	}

	for name, sqlText := range stmts {
		if _, err := conn.Prepare(ctx, name, sqlText); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
