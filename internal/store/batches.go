package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/constructlink/constructlink/internal/model"
)

// ErrVersionConflict is returned by SaveBatch when the batch row was modified
// since it was loaded. The caller should reload and retry.
var ErrVersionConflict = errors.New("batch was modified concurrently")

// ErrBatchNotFound is returned by SaveBatch when the batch row no longer
// exists.
var ErrBatchNotFound = errors.New("batch not found")

// NewBatchReference generates a human-readable, unique batch reference.
func NewBatchReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("WB-%d-%s", now.Year(), suffix)
}

// CreateBatch inserts a batch with its items and the initial audit entry in a
// single transaction, then returns the stored batch.
func CreateBatch(ctx context.Context, db *sql.DB, b *model.Batch, entry *model.AuditEntry) (*model.Batch, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO batches (reference, status, project_id, borrower_name, borrower_contact,
		                      expected_return_date, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, string(b.Status), b.ProjectID, b.BorrowerName, b.BorrowerContact,
		b.ExpectedReturnDate, b.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch: %w", err)
	}

	batchID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting batch id: %w", err)
	}

	for _, it := range b.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO batch_items (batch_id, asset_id, asset_name, asset_tag, unit_cost,
			                          quantity_requested)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			batchID, it.AssetID, it.AssetName, it.AssetTag, it.UnitCost.String(),
			it.QuantityRequested,
		)
		if err != nil {
			return nil, fmt.Errorf("creating batch item: %w", err)
		}
	}

	entry.BatchID = batchID
	if err := insertAudit(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}

	return GetBatch(ctx, db, batchID)
}

// GetBatch returns a batch with its items and full audit trail, or nil if no
// batch with the id exists.
func GetBatch(ctx context.Context, db *sql.DB, id int64) (*model.Batch, error) {
	b := &model.Batch{}
	var contact sql.NullString
	var projectName, createdByName sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT b.id, b.reference, b.status, b.project_id, b.borrower_name, b.borrower_contact,
		        b.expected_return_date, b.created_by, b.version, b.created_at, b.updated_at,
		        p.name AS project_name, u.username AS created_by_name
		 FROM batches b
		 JOIN projects p ON p.id = b.project_id
		 JOIN users u ON u.id = b.created_by
		 WHERE b.id = ?`, id,
	).Scan(&b.ID, &b.Reference, &b.Status, &b.ProjectID, &b.BorrowerName, &contact,
		&b.ExpectedReturnDate, &b.CreatedBy, &b.Version, &b.CreatedAt, &b.UpdatedAt,
		&projectName, &createdByName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}
	b.BorrowerContact = contact.String
	b.ProjectName = projectName.String
	b.CreatedByName = createdByName.String

	if b.Items, err = getBatchItems(ctx, db, id); err != nil {
		return nil, err
	}
	if b.AuditTrail, err = GetAuditTrail(ctx, db, id); err != nil {
		return nil, err
	}
	return b, nil
}

func getBatchItems(ctx context.Context, db *sql.DB, batchID int64) ([]model.BatchItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, batch_id, asset_id, asset_name, asset_tag, unit_cost,
		        quantity_requested, quantity_returned, condition_out, condition_in
		 FROM batch_items WHERE batch_id = ? ORDER BY id`, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting batch items: %w", err)
	}
	defer rows.Close()

	var items []model.BatchItem
	for rows.Next() {
		var it model.BatchItem
		var cost string
		var conditionOut, conditionIn sql.NullString
		if err := rows.Scan(&it.ID, &it.BatchID, &it.AssetID, &it.AssetName, &it.AssetTag,
			&cost, &it.QuantityRequested, &it.QuantityReturned, &conditionOut, &conditionIn); err != nil {
			return nil, fmt.Errorf("scanning batch item: %w", err)
		}
		if it.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parsing unit cost: %w", err)
		}
		it.ConditionOut = conditionOut.String
		it.ConditionIn = conditionIn.String
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetAuditTrail returns a batch's audit entries in append order.
func GetAuditTrail(ctx context.Context, db *sql.DB, batchID int64) ([]model.AuditEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT a.id, a.batch_id, a.actor_id, a.action, a.remarks, a.created_at,
		        COALESCE(u.username, '') AS actor_name
		 FROM audit_entries a
		 LEFT JOIN users u ON u.id = a.actor_id
		 WHERE a.batch_id = ?
		 ORDER BY a.id`, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting audit trail: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var remarks sql.NullString
		if err := rows.Scan(&e.ID, &e.BatchID, &e.ActorID, &e.Action, &remarks,
			&e.CreatedAt, &e.ActorName); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Remarks = remarks.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListBatches returns batch headers (no items or audit trail), newest first.
// projectID 0 means all projects; status "" means all statuses.
func ListBatches(ctx context.Context, db *sql.DB, projectID int64, status model.WorkflowState) ([]model.Batch, error) {
	query := `SELECT b.id, b.reference, b.status, b.project_id, b.borrower_name, b.borrower_contact,
	                 b.expected_return_date, b.created_by, b.version, b.created_at, b.updated_at,
	                 p.name AS project_name, u.username AS created_by_name
	          FROM batches b
	          JOIN projects p ON p.id = b.project_id
	          JOIN users u ON u.id = b.created_by
	          WHERE 1=1`
	var args []any

	if projectID > 0 {
		query += ` AND b.project_id = ?`
		args = append(args, projectID)
	}
	if status != "" {
		query += ` AND b.status = ?`
		args = append(args, string(status))
	}

	query += ` ORDER BY b.created_at DESC, b.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var batches []model.Batch
	for rows.Next() {
		var b model.Batch
		var contact sql.NullString
		if err := rows.Scan(&b.ID, &b.Reference, &b.Status, &b.ProjectID, &b.BorrowerName,
			&contact, &b.ExpectedReturnDate, &b.CreatedBy, &b.Version, &b.CreatedAt,
			&b.UpdatedAt, &b.ProjectName, &b.CreatedByName); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		b.BorrowerContact = contact.String
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// SaveBatch persists a batch's mutable state together with one audit entry in
// a single transaction, guarded by an optimistic version check. Returns
// ErrVersionConflict if another writer got there first; on any error nothing
// is written.
func SaveBatch(ctx context.Context, db *sql.DB, b *model.Batch, expectedVersion int64, entry *model.AuditEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE batches
		 SET status = ?, borrower_name = ?, borrower_contact = ?, expected_return_date = ?,
		     version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`,
		string(b.Status), b.BorrowerName, b.BorrowerContact, b.ExpectedReturnDate,
		b.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating batch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking batch update: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale version from a vanished row.
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM batches WHERE id = ?`, b.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrBatchNotFound
		}
		if err != nil {
			return fmt.Errorf("checking batch version: %w", err)
		}
		return ErrVersionConflict
	}

	for _, it := range b.Items {
		_, err := tx.ExecContext(ctx,
			`UPDATE batch_items
			 SET quantity_returned = ?, condition_out = ?, condition_in = ?
			 WHERE id = ? AND batch_id = ?`,
			it.QuantityReturned, nullable(it.ConditionOut), nullable(it.ConditionIn),
			it.ID, b.ID,
		)
		if err != nil {
			return fmt.Errorf("updating batch item: %w", err)
		}
	}

	entry.BatchID = b.ID
	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch update: %w", err)
	}
	return nil
}

// insertAudit appends one audit entry within the given transaction.
func insertAudit(ctx context.Context, tx *sql.Tx, entry *model.AuditEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_entries (batch_id, actor_id, action, remarks) VALUES (?, ?, ?, ?)`,
		entry.BatchID, entry.ActorID, string(entry.Action), nullable(entry.Remarks),
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
