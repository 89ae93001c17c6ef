package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/legalize2/location-tracker-app/internal/domain/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, creating parent directories
// and the schema as needed.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// modernc sqlite serializes writes; one writer connection avoids
	// SQLITE_BUSY churn under concurrent ingestion.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tracking_links (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			interval_seconds INTEGER NOT NULL DEFAULT 0,
			max_duration_mins INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tracking_sessions (
			id TEXT PRIMARY KEY,
			tracking_id TEXT NOT NULL REFERENCES tracking_links(id),
			started_at TEXT NOT NULL,
			last_update_at TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			total_locations INTEGER NOT NULL DEFAULT 0,
			device TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS location_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tracking_id TEXT NOT NULL REFERENCES tracking_links(id),
			session_id TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			accuracy_m REAL NOT NULL,
			speed_mps REAL,
			heading_deg REAL,
			altitude_m REAL,
			battery_level REAL,
			network_type TEXT,
			user_agent TEXT,
			origin_address TEXT,
			captured_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_samples_link_time ON location_samples(tracking_id, captured_at);`,
		`CREATE INDEX IF NOT EXISTS idx_samples_session ON location_samples(session_id);`,
		`CREATE TABLE IF NOT EXISTS geofences (
			id TEXT PRIMARY KEY,
			tracking_id TEXT NOT NULL REFERENCES tracking_links(id),
			center_lat REAL NOT NULL,
			center_lon REAL NOT NULL,
			radius_m REAL NOT NULL,
			action TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_geofences_link ON geofences(tracking_id, active);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w: %w", ErrStorage, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateLink(ctx context.Context, link *model.TrackingLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_links (id, name, active, interval_seconds, max_duration_mins, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		link.ID, link.Name, boolToInt(link.Active), link.IntervalSeconds,
		link.MaxDurationMins, link.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create link: %w: %w", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) GetLink(ctx context.Context, id string) (model.TrackingLink, error) {
	var link model.TrackingLink
	var active int
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, active, interval_seconds, max_duration_mins, created_at
		 FROM tracking_links WHERE id = ?`, id).
		Scan(&link.ID, &link.Name, &active, &link.IntervalSeconds, &link.MaxDurationMins, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrackingLink{}, fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.TrackingLink{}, fmt.Errorf("get link: %w: %w", ErrStorage, err)
	}
	link.Active = active != 0
	link.CreatedAt = parseTime(created)
	return link, nil
}

func (s *SQLiteStore) DeactivateLink(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tracking_links SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate link: %w: %w", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) AppendSample(ctx context.Context, sample *model.LocationSample) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO location_samples
		 (tracking_id, session_id, latitude, longitude, accuracy_m, speed_mps, heading_deg,
		  altitude_m, battery_level, network_type, user_agent, origin_address, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.TrackingID, sample.SessionID, sample.Latitude, sample.Longitude, sample.AccuracyM,
		nullFloat(sample.SpeedMPS), nullFloat(sample.HeadingDeg), nullFloat(sample.AltitudeM),
		nullFloat(sample.BatteryLevel), sample.NetworkType, sample.UserAgent, sample.OriginAddress,
		sample.CapturedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("append sample: %w: %w", ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append sample id: %w: %w", ErrStorage, err)
	}
	return id, nil
}

func (s *SQLiteStore) SamplesByLink(ctx context.Context, trackingID string, limit int) ([]model.LocationSample, error) {
	if limit < 0 {
		return nil, ErrInvalidLimit
	}
	q := `SELECT id, tracking_id, session_id, latitude, longitude, accuracy_m, speed_mps,
	             heading_deg, altitude_m, battery_level, network_type, user_agent,
	             origin_address, captured_at
	      FROM location_samples WHERE tracking_id = ? ORDER BY captured_at ASC`
	args := []any{trackingID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("samples by link: %w: %w", ErrStorage, err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

func (s *SQLiteStore) SamplesBySession(ctx context.Context, sessionID string) ([]model.LocationSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tracking_id, session_id, latitude, longitude, accuracy_m, speed_mps,
		        heading_deg, altitude_m, battery_level, network_type, user_agent,
		        origin_address, captured_at
		 FROM location_samples WHERE session_id = ? ORDER BY captured_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("samples by session: %w: %w", ErrStorage, err)
	}
	defer rows.Close()
	return scanSamples(rows)
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *model.TrackingSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_sessions (id, tracking_id, started_at, last_update_at, active, total_locations, device)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.TrackingID,
		session.StartedAt.UTC().Format(time.RFC3339Nano),
		session.LastUpdateAt.UTC().Format(time.RFC3339Nano),
		boolToInt(session.Active), session.TotalLocations, session.Device)
	if err != nil {
		return fmt.Errorf("create session: %w: %w", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (model.TrackingSession, error) {
	var sess model.TrackingSession
	var started, updated string
	var active int
	var device sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tracking_id, started_at, last_update_at, active, total_locations, device
		 FROM tracking_sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.TrackingID, &started, &updated, &active, &sess.TotalLocations, &device)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TrackingSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.TrackingSession{}, fmt.Errorf("get session: %w: %w", ErrStorage, err)
	}
	sess.StartedAt = parseTime(started)
	sess.LastUpdateAt = parseTime(updated)
	sess.Active = active != 0
	sess.Device = device.String
	return sess, nil
}

// TouchSession relies on a single UPDATE so concurrent increments on the
// same session never lose updates.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracking_sessions
		 SET total_locations = total_locations + 1, last_update_at = ?
		 WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("touch session: %w: %w", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tracking_sessions SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("end session: %w: %w", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CountActiveSessions(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracking_sessions WHERE active = 1`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteStore) CreateGeofence(ctx context.Context, fence *model.Geofence) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geofences (id, tracking_id, center_lat, center_lon, radius_m, action, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fence.ID, fence.TrackingID, fence.CenterLat, fence.CenterLon,
		fence.RadiusM, fence.Action, boolToInt(fence.Active))
	if err != nil {
		return fmt.Errorf("create geofence: %w: %w", ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) GeofencesByLink(ctx context.Context, trackingID string, activeOnly bool) ([]model.Geofence, error) {
	q := `SELECT id, tracking_id, center_lat, center_lon, radius_m, action, active
	      FROM geofences WHERE tracking_id = ?`
	if activeOnly {
		q += ` AND active = 1`
	}
	rows, err := s.db.QueryContext(ctx, q, trackingID)
	if err != nil {
		return nil, fmt.Errorf("geofences by link: %w: %w", ErrStorage, err)
	}
	defer rows.Close()

	var fences []model.Geofence
	for rows.Next() {
		var f model.Geofence
		var active int
		if err := rows.Scan(&f.ID, &f.TrackingID, &f.CenterLat, &f.CenterLon, &f.RadiusM, &f.Action, &active); err != nil {
			return nil, fmt.Errorf("scan geofence: %w: %w", ErrStorage, err)
		}
		f.Active = active != 0
		fences = append(fences, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("geofence rows: %w: %w", ErrStorage, err)
	}
	return fences, nil
}

func scanSamples(rows *sql.Rows) ([]model.LocationSample, error) {
	var samples []model.LocationSample
	for rows.Next() {
		var sm model.LocationSample
		var speed, heading, altitude, battery sql.NullFloat64
		var network, agent, origin sql.NullString
		var captured string
		if err := rows.Scan(&sm.ID, &sm.TrackingID, &sm.SessionID, &sm.Latitude, &sm.Longitude,
			&sm.AccuracyM, &speed, &heading, &altitude, &battery, &network, &agent, &origin, &captured); err != nil {
			return nil, fmt.Errorf("scan sample: %w: %w", ErrStorage, err)
		}
		sm.SpeedMPS = floatPtr(speed)
		sm.HeadingDeg = floatPtr(heading)
		sm.AltitudeM = floatPtr(altitude)
		sm.BatteryLevel = floatPtr(battery)
		sm.NetworkType = network.String
		sm.UserAgent = agent.String
		sm.OriginAddress = origin.String
		sm.CapturedAt = parseTime(captured)
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample rows: %w: %w", ErrStorage, err)
	}
	return samples, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
