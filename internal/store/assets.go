package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/constructlink/constructlink/internal/model"
)

// CreateAsset creates a new asset.
func CreateAsset(ctx context.Context, db *sql.DB, tag, name, description string, cost decimal.Decimal, projectID int64) (*model.Asset, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO assets (tag, name, description, acquisition_cost, project_id)
		 VALUES (?, ?, ?, ?, ?)`,
		tag, name, description, cost.String(), projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating asset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting asset id: %w", err)
	}

	return GetAsset(ctx, db, id)
}

func scanAsset(scan func(dest ...any) error) (*model.Asset, error) {
	a := &model.Asset{}
	var description, photoMime, projectName sql.NullString
	var cost string
	err := scan(&a.ID, &a.Tag, &a.Name, &description, &cost, &a.ProjectID, &photoMime,
		&a.Status, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt, &projectName)
	if err != nil {
		return nil, err
	}
	a.Description = description.String
	a.PhotoMime = photoMime.String
	a.ProjectName = projectName.String
	if a.AcquisitionCost, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("parsing acquisition cost: %w", err)
	}
	return a, nil
}

const assetColumns = `a.id, a.tag, a.name, a.description, a.acquisition_cost, a.project_id,
	a.photo_mime, a.status, a.created_at, a.updated_at, a.deleted_at,
	COALESCE(p.name, '') AS project_name`

// GetAsset returns an asset by ID.
func GetAsset(ctx context.Context, db *sql.DB, id int64) (*model.Asset, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+assetColumns+`
		 FROM assets a LEFT JOIN projects p ON p.id = a.project_id
		 WHERE a.id = ?`, id,
	)
	a, err := scanAsset(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset: %w", err)
	}
	return a, nil
}

// ListAssets returns all non-deleted assets, optionally filtered by project
// and status.
func ListAssets(ctx context.Context, db *sql.DB, projectID int64, status string) ([]model.Asset, error) {
	query := `SELECT ` + assetColumns + `
	          FROM assets a LEFT JOIN projects p ON p.id = a.project_id
	          WHERE a.deleted_at IS NULL`
	var args []any

	if projectID > 0 {
		query += ` AND a.project_id = ?`
		args = append(args, projectID)
	}
	if status != "" {
		query += ` AND a.status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY a.name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// UpdateAsset updates an asset's metadata.
func UpdateAsset(ctx context.Context, db *sql.DB, id int64, name, description string, cost decimal.Decimal, status string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE assets SET name = ?, description = ?, acquisition_cost = ?, status = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		name, description, cost.String(), status, id,
	)
	if err != nil {
		return fmt.Errorf("updating asset: %w", err)
	}
	return nil
}

// DeleteAsset soft-deletes an asset. Fails if the asset appears in any batch
// that is not yet closed out.
func DeleteAsset(ctx context.Context, db *sql.DB, id int64) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batch_items bi
		 JOIN batches b ON b.id = bi.batch_id
		 WHERE bi.asset_id = ? AND b.status NOT IN ('returned', 'canceled')`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking asset batches: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete asset: referenced by %d open batch items", count)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE assets SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}
	return nil
}

// SetAssetPhoto sets an asset's photo data.
func SetAssetPhoto(ctx context.Context, db *sql.DB, id int64, photo []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE assets SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		photo, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting asset photo: %w", err)
	}
	return nil
}

// GetAssetPhoto returns an asset's photo data and MIME type.
func GetAssetPhoto(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM assets WHERE id = ?`, id,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting asset photo: %w", err)
	}
	return photo, mime.String, nil
}

// GetAssetHistory returns the batches that included an asset, newest first.
func GetAssetHistory(ctx context.Context, db *sql.DB, assetID int64) ([]model.Batch, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT b.id, b.reference, b.status, b.project_id, b.borrower_name, b.borrower_contact,
		        b.expected_return_date, b.created_by, b.version, b.created_at, b.updated_at,
		        p.name AS project_name, u.username AS created_by_name
		 FROM batches b
		 JOIN batch_items bi ON bi.batch_id = b.id
		 JOIN projects p ON p.id = b.project_id
		 JOIN users u ON u.id = b.created_by
		 WHERE bi.asset_id = ?
		 ORDER BY b.created_at DESC, b.id DESC`, assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting asset history: %w", err)
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
