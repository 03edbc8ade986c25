package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure-Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given DSN.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Enable WAL mode and set busy timeout.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	// SQLite only supports one writer at a time. Limit connections to avoid
	// contention and keep a small idle pool for read concurrency.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying sql.DB handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS guidance_items (
			id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			rule TEXT NOT NULL,
			scope TEXT NOT NULL DEFAULT 'always',
			priority INTEGER NOT NULL DEFAULT 5,
			source TEXT NOT NULL DEFAULT 'manual',
			applied_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_applied_at DATETIME,
			version INTEGER NOT NULL DEFAULT 0,
			deleted BOOLEAN NOT NULL DEFAULT 0,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guidance_items_project ON guidance_items(project_id, deleted)`,
		`CREATE TABLE IF NOT EXISTS reference_docs (
			id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			PRIMARY KEY (project_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS vcr_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			action TEXT NOT NULL,
			item_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			timestamp DATETIME NOT NULL,
			request_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_vcr_log_project_version ON vcr_log(project_id, version)`,
		`CREATE TABLE IF NOT EXISTS rule_proposals (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			rule TEXT NOT NULL,
			scope TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			source_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rule_proposals_project ON rule_proposals(project_id, status)`,
		`CREATE TABLE IF NOT EXISTS mrp_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL UNIQUE,
			timestamp DATETIME NOT NULL,
			task_type TEXT NOT NULL DEFAULT '',
			final_tier INTEGER NOT NULL DEFAULT 0,
			final_model_id TEXT NOT NULL DEFAULT '',
			escalation_count INTEGER NOT NULL DEFAULT 0,
			total_latency_ms INTEGER NOT NULL DEFAULT 0,
			total_cost_usd REAL NOT NULL DEFAULT 0,
			complete BOOLEAN NOT NULL DEFAULT 0,
			justification TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mrp_log_timestamp ON mrp_log(timestamp)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Guidance items

func (s *SQLiteStore) ListItems(ctx context.Context, projectID string) ([]GuidanceItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, topic, rule, scope, priority, source, applied_count,
		 created_at, updated_at, last_applied_at, version, deleted
		 FROM guidance_items WHERE project_id = ? AND deleted = 0`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []GuidanceItemRecord
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) GetItem(ctx context.Context, projectID, itemID string) (*GuidanceItemRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, topic, rule, scope, priority, source, applied_count,
		 created_at, updated_at, last_applied_at, version, deleted
		 FROM guidance_items WHERE project_id = ? AND id = ?`, projectID, itemID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (GuidanceItemRecord, error) {
	var it GuidanceItemRecord
	var lastApplied sql.NullTime
	err := row.Scan(&it.ID, &it.ProjectID, &it.Topic, &it.Rule, &it.Scope, &it.Priority,
		&it.Source, &it.AppliedCount, &it.CreatedAt, &it.UpdatedAt, &lastApplied,
		&it.Version, &it.Deleted)
	if err != nil {
		return it, err
	}
	if lastApplied.Valid {
		it.LastAppliedAt = lastApplied.Time
	}
	return it, nil
}

func (s *SQLiteStore) UpsertItem(ctx context.Context, item GuidanceItemRecord) error {
	var lastApplied any
	if !item.LastAppliedAt.IsZero() {
		lastApplied = item.LastAppliedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guidance_items (id, project_id, topic, rule, scope, priority, source,
		 applied_count, created_at, updated_at, last_applied_at, version, deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, id) DO UPDATE SET
		   topic=excluded.topic,
		   rule=excluded.rule,
		   scope=excluded.scope,
		   priority=excluded.priority,
		   source=excluded.source,
		   applied_count=excluded.applied_count,
		   updated_at=excluded.updated_at,
		   last_applied_at=excluded.last_applied_at,
		   version=excluded.version,
		   deleted=excluded.deleted`,
		item.ID, item.ProjectID, item.Topic, item.Rule, item.Scope, item.Priority, item.Source,
		item.AppliedCount, item.CreatedAt, item.UpdatedAt, lastApplied, item.Version, item.Deleted)
	return err
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, projectID, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE guidance_items SET deleted = 1, updated_at = ? WHERE project_id = ? AND id = ?`,
		time.Now().UTC(), projectID, itemID)
	return err
}

func (s *SQLiteStore) IncrementAppliedCount(ctx context.Context, projectID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, id := range itemIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE guidance_items SET applied_count = applied_count + 1, last_applied_at = ?
			 WHERE project_id = ? AND id = ?`, time.Now().UTC(), projectID, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Reference docs

func (s *SQLiteStore) ListReferenceDocs(ctx context.Context, projectID string) ([]ReferenceDocRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, body, created_at FROM reference_docs WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var docs []ReferenceDocRecord
	for rows.Next() {
		var d ReferenceDocRecord
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Title, &d.Body, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) UpsertReferenceDoc(ctx context.Context, doc ReferenceDocRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reference_docs (id, project_id, title, body, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, id) DO UPDATE SET title=excluded.title, body=excluded.body`,
		doc.ID, doc.ProjectID, doc.Title, doc.Body, doc.CreatedAt)
	return err
}

func (s *SQLiteStore) DeleteReferenceDoc(ctx context.Context, projectID, docID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reference_docs WHERE project_id = ? AND id = ?`, projectID, docID)
	return err
}

// VCR log

func (s *SQLiteStore) AppendVCR(ctx context.Context, entry VCREntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vcr_log (project_id, version, action, item_id, detail, timestamp, request_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ProjectID, entry.Version, entry.Action, entry.ItemID, entry.Detail, entry.Timestamp, entry.RequestID)
	return err
}

func (s *SQLiteStore) ListVCR(ctx context.Context, projectID string, limit, offset int) ([]VCREntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, version, action, item_id, detail, timestamp, request_id
		 FROM vcr_log WHERE project_id = ? ORDER BY version DESC LIMIT ? OFFSET ?`, projectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanVCRRows(rows)
}

func (s *SQLiteStore) ListVCRSince(ctx context.Context, projectID string, version int) ([]VCREntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, version, action, item_id, detail, timestamp, request_id
		 FROM vcr_log WHERE project_id = ? AND version > ? ORDER BY version ASC`, projectID, version)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanVCRRows(rows)
}

func scanVCRRows(rows *sql.Rows) ([]VCREntry, error) {
	var entries []VCREntry
	for rows.Next() {
		var e VCREntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Version, &e.Action, &e.ItemID, &e.Detail, &e.Timestamp, &e.RequestID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) CurrentVersion(ctx context.Context, projectID string) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM vcr_log WHERE project_id = ?`, projectID).Scan(&v)
	if err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

// Rule proposals

func (s *SQLiteStore) ListProposals(ctx context.Context, projectID string) ([]RuleProposalRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, topic, rule, scope, confidence, source_text, status, created_at
		 FROM rule_proposals WHERE project_id = ? ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var props []RuleProposalRecord
	for rows.Next() {
		var p RuleProposalRecord
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Topic, &p.Rule, &p.Scope, &p.Confidence,
			&p.SourceText, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func (s *SQLiteStore) UpsertProposal(ctx context.Context, p RuleProposalRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_proposals (id, project_id, topic, rule, scope, confidence, source_text, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   topic=excluded.topic, rule=excluded.rule, scope=excluded.scope,
		   confidence=excluded.confidence, source_text=excluded.source_text, status=excluded.status`,
		p.ID, p.ProjectID, p.Topic, p.Rule, p.Scope, p.Confidence, p.SourceText, p.Status, p.CreatedAt)
	return err
}

// MRP audit log

func (s *SQLiteStore) LogMRP(ctx context.Context, entry MRPRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mrp_log (request_id, timestamp, task_type, final_tier, final_model_id,
		 escalation_count, total_latency_ms, total_cost_usd, complete, justification, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(request_id) DO UPDATE SET
		   timestamp=excluded.timestamp, task_type=excluded.task_type,
		   final_tier=excluded.final_tier, final_model_id=excluded.final_model_id,
		   escalation_count=excluded.escalation_count, total_latency_ms=excluded.total_latency_ms,
		   total_cost_usd=excluded.total_cost_usd, complete=excluded.complete,
		   justification=excluded.justification, detail=excluded.detail`,
		entry.RequestID, entry.Timestamp, entry.TaskType, entry.FinalTier, entry.FinalModelID,
		entry.EscalationCount, entry.TotalLatencyMs, entry.TotalCostUSD, entry.Complete,
		entry.Justification, entry.Detail)
	return err
}

func (s *SQLiteStore) ListMRPs(ctx context.Context, limit, offset int) ([]MRPRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, timestamp, task_type, final_tier, final_model_id,
		 escalation_count, total_latency_ms, total_cost_usd, complete, justification, detail
		 FROM mrp_log ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanMRPRows(rows)
}

func (s *SQLiteStore) GetMRP(ctx context.Context, requestID string) (*MRPRecord, error) {
	var m MRPRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, request_id, timestamp, task_type, final_tier, final_model_id,
		 escalation_count, total_latency_ms, total_cost_usd, complete, justification, detail
		 FROM mrp_log WHERE request_id = ?`, requestID).
		Scan(&m.ID, &m.RequestID, &m.Timestamp, &m.TaskType, &m.FinalTier, &m.FinalModelID,
			&m.EscalationCount, &m.TotalLatencyMs, &m.TotalCostUSD, &m.Complete, &m.Justification, &m.Detail)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMRPRows(rows *sql.Rows) ([]MRPRecord, error) {
	var entries []MRPRecord
	for rows.Next() {
		var m MRPRecord
		if err := rows.Scan(&m.ID, &m.RequestID, &m.Timestamp, &m.TaskType, &m.FinalTier, &m.FinalModelID,
			&m.EscalationCount, &m.TotalLatencyMs, &m.TotalCostUSD, &m.Complete, &m.Justification, &m.Detail); err != nil {
			return nil, err
		}
		entries = append(entries, m)
	}
	return entries, rows.Err()
}

// PruneOldLogs removes VCR and MRP log entries older than retention. Guidance
// items and reference docs are never pruned — only audit history.
func (s *SQLiteStore) PruneOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	var total int64
	res, err := s.db.ExecContext(ctx, `DELETE FROM mrp_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = s.db.ExecContext(ctx, `DELETE FROM vcr_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return total, err
	}
	n, _ = res.RowsAffected()
	total += n
	return total, nil
}
