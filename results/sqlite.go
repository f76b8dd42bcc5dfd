package results

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteSink stores metrics and predictions in a SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSQLiteSink opens (or creates) the database and runs migrations.
func NewSQLiteSink(dbPath string, logger *zap.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the metrics command read while a scheduled run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteSink{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite sink opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS model_metrics (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			model       TEXT NOT NULL,
			granularity TEXT NOT NULL,
			model_order TEXT,
			mae         REAL,
			rmse        REAL,
			r2          REAL,
			recorded_at INTEGER NOT NULL,
			UNIQUE(model, granularity)
		)`,

		`CREATE TABLE IF NOT EXISTS predictions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			model       TEXT NOT NULL,
			granularity TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			actual      REAL,
			forecast    REAL,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_key ON predictions(model, granularity)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return s.addColumns("model_metrics", []string{
		"differenced INTEGER NOT NULL DEFAULT 0",
		"integration_order INTEGER NOT NULL DEFAULT 0",
		"aic REAL",
		"ljung_box_p REAL",
	})
}

// addColumns adds each column definition whose name is missing from table.
func (s *SQLiteSink) addColumns(table string, defs []string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, def := range defs {
		name, _, _ := strings.Cut(def, " ")
		if have[name] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, def)); err != nil {
			return fmt.Errorf("add %s.%s: %w", table, name, err)
		}
	}
	return nil
}

func (s *SQLiteSink) SaveMetrics(ctx context.Context, rec MetricsRecord) error {
	if err := validate(rec.Model, rec.Granularity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO model_metrics
		(run_id, model, granularity, model_order, mae, rmse, r2, recorded_at,
		 differenced, integration_order, aic, ljung_box_p)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(model, granularity) DO UPDATE SET
			run_id = excluded.run_id,
			model_order = excluded.model_order,
			mae = excluded.mae,
			rmse = excluded.rmse,
			r2 = excluded.r2,
			recorded_at = excluded.recorded_at,
			differenced = excluded.differenced,
			integration_order = excluded.integration_order,
			aic = excluded.aic,
			ljung_box_p = excluded.ljung_box_p`,
		rec.RunID, rec.Model, rec.Granularity, rec.Order,
		rec.MAE, rec.RMSE, rec.R2, rec.RecordedAt.Unix(),
		rec.Differenced, rec.IntegrationOrder, nullFloat(rec.AIC), nullFloat(rec.LjungBoxP),
	)
	if err != nil {
		return fmt.Errorf("upsert metrics %s: %w", rec.Key(), err)
	}
	s.logger.Info("metrics saved", zap.String("key", rec.Key()), zap.String("run_id", rec.RunID))
	return nil
}

func (s *SQLiteSink) SavePredictions(ctx context.Context, set PredictionSet) error {
	if err := validate(set.Model, set.Granularity); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM predictions WHERE model = ? AND granularity = ?`,
		set.Model, set.Granularity,
	); err != nil {
		return fmt.Errorf("clear predictions %s: %w", set.Key(), err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO predictions
		(run_id, model, granularity, timestamp, actual, forecast, recorded_at)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	recorded := set.RecordedAt.Unix()
	for _, p := range set.Points {
		if _, err := stmt.ExecContext(ctx,
			set.RunID, set.Model, set.Granularity, p.Time.Unix(), p.Actual, p.Forecast, recorded,
		); err != nil {
			return fmt.Errorf("insert prediction %s: %w", set.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("predictions saved", zap.String("key", set.Key()), zap.Int("points", len(set.Points)))
	return nil
}

func (s *SQLiteSink) LoadMetrics(ctx context.Context) ([]MetricsRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, model, granularity, model_order,
		mae, rmse, r2, recorded_at, differenced, integration_order, aic, ljung_box_p
		FROM model_metrics ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []MetricsRecord
	for rows.Next() {
		var (
			rec      MetricsRecord
			order    sql.NullString
			recorded int64
			aic, lbp sql.NullFloat64
		)
		if err := rows.Scan(&rec.RunID, &rec.Model, &rec.Granularity, &order,
			&rec.MAE, &rec.RMSE, &rec.R2, &recorded,
			&rec.Differenced, &rec.IntegrationOrder, &aic, &lbp); err != nil {
			return nil, err
		}
		rec.Order = order.String
		rec.RecordedAt = time.Unix(recorded, 0).UTC()
		rec.AIC = floatOrNaN(aic)
		rec.LjungBoxP = floatOrNaN(lbp)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LoadPredictions returns the stored points of one key in time order.
func (s *SQLiteSink) LoadPredictions(ctx context.Context, model, granularity string) ([]Prediction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT timestamp, actual, forecast FROM predictions
		WHERE model = ? AND granularity = ? ORDER BY timestamp`, model, granularity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []Prediction
	for rows.Next() {
		var (
			p  Prediction
			ts int64
		)
		if err := rows.Scan(&ts, &p.Actual, &p.Forecast); err != nil {
			return nil, err
		}
		p.Time = time.Unix(ts, 0).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// nullFloat stores NaN and ±Inf as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func (s *SQLiteSink) Close() error {
	s.logger.Info("closing sqlite sink")
	return s.db.Close()
}
