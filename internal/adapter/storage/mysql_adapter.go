package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/blood-service/internal/core/domain"
)

const (
	mysqlErrDeadlock   = 1213
	maxDeadlockRetries = 3
)

// MySQLAdapter stores records as rows keyed by an auto-increment sequence
// (storage order) with free-form fields kept in a JSON column. The schema
// lives in deploy/mysql/schema.sql.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// OpenMySQL opens a pool for dsn. Timestamps are always parsed and stored in UTC.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func (m *MySQLAdapter) InsertSubscription(ctx context.Context, sub domain.Subscription) error {
	extra, err := encodeExtra(sub.Extra)
	if err != nil {
		return err
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, blood_type, location, extra)
		VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.BloodType, sub.Location, extra,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListSubscriptionsByUser(ctx context.Context, userID string, limit int) ([]domain.Subscription, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, blood_type, location, extra
		FROM subscriptions WHERE user_id = ?
		ORDER BY seq LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		var sub domain.Subscription
		var extra sql.NullString
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.BloodType, &sub.Location, &extra); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if sub.Extra, err = decodeExtra(extra); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpsertInventory relies on the unique (blood_type, location) index: the
// insert and the conflicting update are a single statement. InnoDB may pick
// concurrent upserts on one key as deadlock victims; those are re-run.
func (m *MySQLAdapter) UpsertInventory(ctx context.Context, rec domain.InventoryRecord) (domain.InventoryRecord, bool, error) {
	extra, err := encodeExtra(rec.Extra)
	if err != nil {
		return domain.InventoryRecord{}, false, err
	}

	for attempt := 1; ; attempt++ {
		stored, created, err := m.upsertInventory(ctx, rec, extra)
		var myErr *mysql.MySQLError
		if err != nil && errors.As(err, &myErr) && myErr.Number == mysqlErrDeadlock && attempt < maxDeadlockRetries {
			continue
		}
		return stored, created, err
	}
}

func (m *MySQLAdapter) upsertInventory(ctx context.Context, rec domain.InventoryRecord, extra sql.NullString) (domain.InventoryRecord, bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InventoryRecord{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO blood_inventory (id, blood_type, location, quantity, region_name, extra)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			quantity = VALUES(quantity),
			region_name = IF(?, VALUES(region_name), region_name)`,
		rec.ID, rec.BloodType, rec.Location, rec.Quantity, nullString(rec.RegionName), extra,
		rec.RegionName != nil,
	)
	if err != nil {
		return domain.InventoryRecord{}, false, fmt.Errorf("upsert inventory: %w", err)
	}

	// 1 for a fresh insert, 2 for an update, 0 when the update changed nothing
	rows, _ := result.RowsAffected()
	created := rows == 1

	stored, err := scanInventory(tx.QueryRowContext(ctx, `
		SELECT id, blood_type, location, quantity, region_name, extra
		FROM blood_inventory WHERE blood_type = ? AND location = ?`,
		rec.BloodType, rec.Location,
	))
	if err != nil {
		return domain.InventoryRecord{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return domain.InventoryRecord{}, false, fmt.Errorf("commit: %w", err)
	}
	return stored, created, nil
}

func (m *MySQLAdapter) ListInventory(ctx context.Context, limit int) ([]domain.InventoryRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, blood_type, location, quantity, region_name, extra
		FROM blood_inventory ORDER BY seq LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	records := []domain.InventoryRecord{}
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (m *MySQLAdapter) InsertDemand(ctx context.Context, demand domain.Demand) error {
	extra, err := encodeExtra(demand.Extra)
	if err != nil {
		return err
	}

	region := sql.NullString{String: demand.RegionName, Valid: demand.RegionName != ""}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO demands (id, blood_type, region_name, extra, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		demand.ID, demand.BloodType, region, extra, demand.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert demand: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListDemands(ctx context.Context, limit int) ([]domain.Demand, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, blood_type, region_name, extra, created_at
		FROM demands ORDER BY created_at DESC, seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query demands: %w", err)
	}
	defer rows.Close()

	demands := []domain.Demand{}
	for rows.Next() {
		var d domain.Demand
		var region, extra sql.NullString
		if err := rows.Scan(&d.ID, &d.BloodType, &region, &extra, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan demand: %w", err)
		}
		d.RegionName = region.String
		d.CreatedAt = d.CreatedAt.UTC()
		if d.Extra, err = decodeExtra(extra); err != nil {
			return nil, err
		}
		demands = append(demands, d)
	}
	return demands, rows.Err()
}

func (m *MySQLAdapter) Close() error {
	return m.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInventory(row rowScanner) (domain.InventoryRecord, error) {
	var rec domain.InventoryRecord
	var region, extra sql.NullString
	if err := row.Scan(&rec.ID, &rec.BloodType, &rec.Location, &rec.Quantity, &region, &extra); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("scan inventory: %w", err)
	}
	if region.Valid {
		rec.RegionName = &region.String
	}
	var err error
	if rec.Extra, err = decodeExtra(extra); err != nil {
		return domain.InventoryRecord{}, err
	}
	return rec, nil
}
