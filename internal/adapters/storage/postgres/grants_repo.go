package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"condo-access-control/internal/domain/grants"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const grantColumns = `
	id, kind, visitor_name, visitor_id_number,
	vehicle_plate, vehicle_model, company_detail,
	destination_unit, owner_display_name, author_id,
	status, archived, created_at, entry_time, exit_time
`

type GrantsRepo struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewGrantsRepo(pool *pgxpool.Pool, log *zap.Logger) *GrantsRepo {
	if log == nil {
		log = zap.NewNop()
	}
	return &GrantsRepo{pool: pool, log: log}
}

func (r *GrantsRepo) Create(ctx context.Context, g grants.Grant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_grants (
			id, kind, visitor_name, visitor_id_number,
			vehicle_plate, vehicle_model, company_detail,
			destination_unit, owner_display_name, author_id,
			status, archived, created_at, entry_time, exit_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		g.ID,
		string(g.Kind),
		g.VisitorName,
		g.VisitorIDNumber,
		g.VehiclePlate,
		g.VehicleModel,
		g.CompanyDetail,
		g.DestinationUnit,
		g.OwnerDisplayName,
		g.AuthorID,
		string(g.Status),
		g.Archived,
		g.CreatedAt,
		g.EntryTime,
		g.ExitTime,
	)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (r *GrantsRepo) GetByID(ctx context.Context, id string) (grants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return grants.Grant{}, grants.ErrNotFound
	}

	row := r.pool.QueryRow(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE id = $1`, id)
	g, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return grants.Grant{}, grants.ErrNotFound
		}
		return grants.Grant{}, err
	}
	return g, nil
}

// Transition es el write condicional: el UPDATE solo matchea si el status
// almacenado sigue siendo expected. Cero filas => se relee el registro para
// clasificar el conflicto sin mutar nada.
func (r *GrantsRepo) Transition(ctx context.Context, id string, expected, next grants.Status, field grants.TimeField, at time.Time) (grants.Grant, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE access_grants
		SET
			status = $3,
			entry_time = CASE WHEN $4 = 'entry_time' THEN $5 ELSE entry_time END,
			exit_time  = CASE WHEN $4 = 'exit_time'  THEN $5 ELSE exit_time  END
		WHERE id = $1 AND status = $2
		RETURNING `+grantColumns,
		id, string(expected), string(next), string(field), at,
	)

	g, err := scanGrant(row)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return grants.Grant{}, fmt.Errorf("transition grant: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return grants.Grant{}, err
	}
	return grants.Grant{}, grants.TransitionConflict(current.Status, next)
}

func (r *GrantsRepo) QueryActive(ctx context.Context) ([]grants.Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE status IN ('PENDIENTE', 'EN_SITIO')
		ORDER BY (status = 'EN_SITIO') DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query active: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

func (r *GrantsRepo) QueryHistory(ctx context.Context, limit int) ([]grants.Grant, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE status = 'SALIDA' AND archived = FALSE
		ORDER BY exit_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

func (r *GrantsRepo) QueryRadar(ctx context.Context, authorID string) ([]grants.Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE status = 'EN_SITIO' AND author_id = $1
		ORDER BY entry_time ASC
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("query radar: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

func (r *GrantsRepo) QueryByAuthor(ctx context.Context, authorID string) ([]grants.Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+grantColumns+`
		FROM access_grants
		WHERE author_id = $1
		ORDER BY created_at DESC
	`, authorID)
	if err != nil {
		return nil, fmt.Errorf("query by author: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

// ArchiveBatch corre en una transacción: si la cantidad de filas afectadas
// no es exactamente la del snapshot, rollback y ErrPartialArchive — ningún
// registro queda a medio archivar.
func (r *GrantsRepo) ArchiveBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive batch: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE access_grants
		SET archived = TRUE
		WHERE id = ANY($1) AND status = 'SALIDA'
	`, ids)
	if err != nil {
		return fmt.Errorf("archive batch: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return grants.ErrPartialArchive
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive batch: %w", err)
	}
	return nil
}

func (r *GrantsRepo) Subscribe(ctx context.Context, f grants.Filter) (<-chan grants.Change, error) {
	return subscribe(ctx, r.pool, r, f, r.log)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (grants.Grant, error) {
	var g grants.Grant
	var kind, status string

	if err := row.Scan(
		&g.ID,
		&kind,
		&g.VisitorName,
		&g.VisitorIDNumber,
		&g.VehiclePlate,
		&g.VehicleModel,
		&g.CompanyDetail,
		&g.DestinationUnit,
		&g.OwnerDisplayName,
		&g.AuthorID,
		&status,
		&g.Archived,
		&g.CreatedAt,
		&g.EntryTime,
		&g.ExitTime,
	); err != nil {
		return grants.Grant{}, err
	}

	g.Kind = grants.Kind(kind)
	g.Status = grants.Status(status)
	return g, nil
}

func scanGrants(rows pgx.Rows) ([]grants.Grant, error) {
	out := make([]grants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
