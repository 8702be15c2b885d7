package postgres

import (
	"context"
	"errors"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kagenti-labs/x402-gateway/internal/domain"
	"github.com/kagenti-labs/x402-gateway/internal/x402types"
)

// ErrNotFound is returned when a lookup finds no matching row; an
// alias of domain.ErrNotFound so callers can use either name.
var ErrNotFound = domain.ErrNotFound

// ServiceRepo mirrors the catalog in Postgres for cheap listing; the
// on-chain ServiceRegistry remains authoritative for active/price
// (SPEC_FULL.md §3.1).
type ServiceRepo struct {
	pool *pgxpool.Pool
}

func NewServiceRepo(pool *pgxpool.Pool) *ServiceRepo {
	return &ServiceRepo{pool: pool}
}

func (r *ServiceRepo) Create(ctx context.Context, svc *domain.Service) error {
	hash := domain.ServiceIDHash(svc.ID)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (service_id, service_id_hash, name, description, price_base_units,
			token_address, kind, content, endpoint, provider_address, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		svc.ID, hash.Bytes(), svc.Name, svc.Description, svc.PriceBaseUnits.String(),
		svc.TokenAddress, string(svc.Kind), nullableJSON(svc.Content), nullableString(svc.Endpoint),
		svc.ProviderAddress, svc.Active, svc.CreatedAt,
	)
	return err
}

func (r *ServiceRepo) Get(ctx context.Context, serviceID string) (*domain.Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT service_id, name, description, price_base_units::text, token_address, kind,
			content, endpoint, provider_address, active, created_at
		FROM services WHERE service_id = $1`, serviceID)
	return scanService(row)
}

func (r *ServiceRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Service, error) {
	query := `SELECT service_id, name, description, price_base_units::text, token_address, kind,
		content, endpoint, provider_address, active, created_at FROM services`
	if activeOnly {
		query += ` WHERE active = true`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// Delete removes the catalog mirror row. Used only by gatewayctl's
// register-service rollback when the on-chain ServiceRegistry.register
// call fails after the DB row was already committed (spec.md §9,
// DESIGN.md "DB-first vs chain-first service registration").
func (r *ServiceRepo) Delete(ctx context.Context, serviceID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM services WHERE service_id = $1`, serviceID)
	return err
}

func (r *ServiceRepo) SetActive(ctx context.Context, serviceID string, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE services SET active = $2 WHERE service_id = $1`, serviceID, active)
	return err
}

// UpdatePrice mirrors a ServiceRegistry.updatePrice call into the
// catalog's cheap-listing copy (gatewayctl's update-price operator
// command is the only caller).
func (r *ServiceRepo) UpdatePrice(ctx context.Context, serviceID string, price *big.Int) error {
	_, err := r.pool.Exec(ctx, `UPDATE services SET price_base_units = $2 WHERE service_id = $1`, serviceID, price.String())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*domain.Service, error) {
	var (
		svc         domain.Service
		priceStr    string
		kind        string
		content     []byte
		endpoint    *string
	)
	err := row.Scan(&svc.ID, &svc.Name, &svc.Description, &priceStr, &svc.TokenAddress, &kind,
		&content, &endpoint, &svc.ProviderAddress, &svc.Active, &svc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	price, ok := new(big.Int).SetString(priceStr, 10)
	if !ok {
		return nil, errors.New("corrupt price_base_units in services row")
	}
	svc.PriceBaseUnits = price
	svc.Kind = x402types.ServiceKind(kind)
	svc.Content = content
	if endpoint != nil {
		svc.Endpoint = *endpoint
	}
	return &svc, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
