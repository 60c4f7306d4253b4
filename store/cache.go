package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordforge/scim-ad-bridge/scim"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint failure.
const uniqueViolation = "23505"

// ErrNotFound is returned by FindByID/FindBySam when no row matches.
var ErrNotFound = errors.New("cache: row not found")

// ErrDuplicate is returned by Insert when the sam_account_name unique
// constraint rejects the row — the losing side of a create race that
// FindBySam's pre-check could not see (spec.md §5 "Uniqueness race on
// create").
var ErrDuplicate = errors.New("cache: sam_account_name already exists")

// CacheStore is the persistence seam for the scim_users table, component F
// of the request processor (spec.md §4.F). Every mutation records
// updated_at = now(); mutation failures are always returned to the caller,
// never swallowed, unlike audit writes.
type CacheStore struct {
	pool *pgxpool.Pool
}

const selectColumns = `id, ad_object_guid, sam_account_name, scim_resource, ad_resource, sync_status, last_error, created_at, updated_at`

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	var status string
	err := row.Scan(&r.ID, &r.ADObjectGUID, &r.SamAccountName, &r.ScimResource, &r.AdResource, &status, &r.LastError, &r.CreatedAt, &r.UpdatedAt)
	r.SyncStatus = SyncStatus(status)
	return r, err
}

// FindByID looks up a row by its SCIM id (the primary key).
func (c *CacheStore) FindByID(ctx context.Context, id string) (Row, error) {
	row := c.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM scim_users WHERE id = $1", id)
	r, err := scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("find by id: %w", err)
	}
	return r, nil
}

// FindBySam looks up a row by sAMAccountName, used by create's uniqueness
// check.
func (c *CacheStore) FindBySam(ctx context.Context, sam string) (Row, error) {
	row := c.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM scim_users WHERE sam_account_name = $1", sam)
	r, err := scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("find by sam: %w", err)
	}
	return r, nil
}

// Insert writes a brand-new row and returns it with the server-assigned
// created_at/updated_at populated.
func (c *CacheStore) Insert(ctx context.Context, row Row) (Row, error) {
	err := c.pool.QueryRow(ctx, `
		INSERT INTO scim_users (id, ad_object_guid, sam_account_name, scim_resource, ad_resource, sync_status, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, row.ID, row.ADObjectGUID, row.SamAccountName, row.ScimResource, row.AdResource, string(row.SyncStatus), row.LastError,
	).Scan(&row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Row{}, ErrDuplicate
		}
		return Row{}, fmt.Errorf("insert cache row: %w", err)
	}
	return row, nil
}

// Update replaces the mutable fields of an existing row, bumps updated_at,
// and returns the row as persisted. ADObjectGUID, once non-nil on the
// existing row, is preserved even if the caller passes a nil override
// (invariant 5: AD is ground truth for the GUID, never cleared).
func (c *CacheStore) Update(ctx context.Context, row Row) (Row, error) {
	err := c.pool.QueryRow(ctx, `
		UPDATE scim_users
		SET ad_object_guid = COALESCE($2, ad_object_guid),
		    sam_account_name = $3,
		    scim_resource = $4,
		    ad_resource = COALESCE($5, ad_resource),
		    sync_status = $6,
		    last_error = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ad_object_guid, created_at, updated_at
	`, row.ID, row.ADObjectGUID, row.SamAccountName, row.ScimResource, row.AdResource, string(row.SyncStatus), row.LastError,
	).Scan(&row.ADObjectGUID, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return Row{}, fmt.Errorf("update cache row: %w", err)
	}
	return row, nil
}

// Delete removes a row.
func (c *CacheStore) Delete(ctx context.Context, id string) error {
	_, err := c.pool.Exec(ctx, "DELETE FROM scim_users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete cache row: %w", err)
	}
	return nil
}

// Page runs a paged query, optionally filtered by predicate, ordered by
// created_at ascending, and returns the page's rows plus the total count of
// rows matching the same predicate, ignoring offset and limit (spec.md §4.G
// list).
func (c *CacheStore) Page(ctx context.Context, predicate *scim.Predicate, offset, limit int) ([]Row, int, error) {
	whereClause, args := predicateClause(predicate)

	var total int
	countQuery := "SELECT count(*) FROM scim_users " + whereClause
	if err := c.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count cache rows: %w", err)
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	pageQuery := fmt.Sprintf(
		"SELECT %s FROM scim_users %s ORDER BY created_at ASC LIMIT $%d OFFSET $%d",
		selectColumns, whereClause, len(args)+1, len(args)+2,
	)

	rows, err := c.pool.Query(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("page cache rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan page row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate page rows: %w", err)
	}

	return out, total, nil
}

// FindPendingOrError returns every row not currently synced, for the
// reconcile command's sweep (SPEC_FULL.md §10.2).
func (c *CacheStore) FindPendingOrError(ctx context.Context) ([]Row, error) {
	rows, err := c.pool.Query(ctx, "SELECT "+selectColumns+" FROM scim_users WHERE sync_status IN ($1, $2) ORDER BY created_at ASC",
		string(StatusPending), string(StatusError))
	if err != nil {
		return nil, fmt.Errorf("find pending or error rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending rows: %w", err)
	}
	return out, nil
}

// predicateClause translates a supported scim.Predicate into a WHERE clause
// and its positional argument. Only "eq" is meaningful against these
// columns; any other operator is treated as unsupported here too, since
// spec.md §4.B only ever hands the processor filters it parsed against
// dedicated columns, which in practice are always equality checks.
func predicateClause(predicate *scim.Predicate) (string, []any) {
	if predicate == nil || predicate.Op != scim.OpEq {
		return "", nil
	}
	return fmt.Sprintf("WHERE %s = $1", string(predicate.Column)), []any{predicate.Value}
}
