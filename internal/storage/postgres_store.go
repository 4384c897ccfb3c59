package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/qz-yi/Satha-Choice-sub000/internal/city"
	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

// PostgresStore implements RequestStore and DriverDirectory on one database
// handle. The conditional UPDATE in UpdateConditional is what makes the
// accept race safe across multiple server processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying handle so the wallet ledger can share it.
func (p *PostgresStore) DB() *sql.DB { return p.db }

const requestCols = `id, status, city, pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address, driver_id, customer_id,
	customer_phone, price, payment_method, created_at`

func (p *PostgresStore) Create(ctx context.Context, r *models.Request) (*models.Request, error) {
	cp := *r
	cp.ID = NewID()
	cp.Status = models.StatusPending
	cp.DriverID = ""
	cp.City = city.Canonical(cp.City)
	cp.CreatedAt = time.Now()
	_, err := p.db.ExecContext(ctx, `INSERT INTO requests(`+requestCols+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12,$13,$14,$15)`,
		cp.ID, cp.Status, cp.City, cp.Pickup.Lat, cp.Pickup.Lng, cp.PickupAddress,
		cp.Dropoff.Lat, cp.Dropoff.Lng, cp.DropoffAddress, cp.DriverID, cp.CustomerID,
		cp.CustomerPhone, cp.Price, cp.PaymentMethod, cp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func scanRequest(row *sql.Row) (*models.Request, error) {
	var r models.Request
	var driverID sql.NullString
	err := row.Scan(&r.ID, &r.Status, &r.City, &r.Pickup.Lat, &r.Pickup.Lng, &r.PickupAddress,
		&r.Dropoff.Lat, &r.Dropoff.Lng, &r.DropoffAddress, &driverID, &r.CustomerID,
		&r.CustomerPhone, &r.Price, &r.PaymentMethod, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.DriverID = driverID.String
	return &r, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Request, error) {
	return scanRequest(p.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id=$1`, id))
}

func (p *PostgresStore) List(ctx context.Context) ([]*models.Request, error) {
	return p.queryRequests(ctx, `SELECT `+requestCols+` FROM requests ORDER BY created_at DESC`)
}

func (p *PostgresStore) ListPendingByCity(ctx context.Context, cityName string) ([]*models.Request, error) {
	return p.queryRequests(ctx,
		`SELECT `+requestCols+` FROM requests WHERE status=$1 AND city=$2 ORDER BY created_at`,
		models.StatusPending, city.Canonical(cityName))
}

func (p *PostgresStore) queryRequests(ctx context.Context, q string, args ...any) ([]*models.Request, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Request
	for rows.Next() {
		var r models.Request
		var driverID sql.NullString
		if err := rows.Scan(&r.ID, &r.Status, &r.City, &r.Pickup.Lat, &r.Pickup.Lng, &r.PickupAddress,
			&r.Dropoff.Lat, &r.Dropoff.Lng, &r.DropoffAddress, &driverID, &r.CustomerID,
			&r.CustomerPhone, &r.Price, &r.PaymentMethod, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.DriverID = driverID.String
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateConditional(ctx context.Context, id string, expected models.Status, patch RequestPatch) (*models.Request, error) {
	var status, driverID sql.NullString
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}
	if patch.DriverID != nil {
		driverID = sql.NullString{String: *patch.DriverID, Valid: true}
	}
	row := p.db.QueryRowContext(ctx, `UPDATE requests
		SET status = COALESCE($1, status), driver_id = COALESCE($2, driver_id)
		WHERE id = $3 AND status = $4
		RETURNING `+requestCols, status, driverID, id, expected)
	r, err := scanRequest(row)
	if errors.Is(err, ErrNotFound) {
		// No row matched: missing request or a lost race. Look once more
		// to tell the two apart.
		if _, getErr := p.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	return r, err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM requests WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- DriverDirectory ---

const driverCols = `id, name, phone, avatar_url, vehicle_type, status, online, city, wallet_balance`

func (p *PostgresStore) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+driverCols+` FROM drivers WHERE id=$1`, id)
	var d models.Driver
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.AvatarURL, &d.VehicleType, &d.Status, &d.Online, &d.City, &d.WalletBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// PostgresDriverDirectory adapts PostgresStore to the DriverDirectory
// interface so both collaborators can live on one connection pool.
type PostgresDriverDirectory struct {
	store *PostgresStore
}

func NewPostgresDriverDirectory(store *PostgresStore) *PostgresDriverDirectory {
	return &PostgresDriverDirectory{store: store}
}

func (p *PostgresDriverDirectory) Get(ctx context.Context, id string) (*models.Driver, error) {
	return p.store.GetDriver(ctx, id)
}

func (p *PostgresDriverDirectory) List(ctx context.Context, f DriverFilter) ([]*models.Driver, error) {
	rows, err := p.store.db.QueryContext(ctx, `SELECT `+driverCols+` FROM drivers
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR city = $2) AND (NOT $3 OR online)`,
		string(f.Status), city.Canonical(f.City), f.OnlineOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.AvatarURL, &d.VehicleType, &d.Status, &d.Online, &d.City, &d.WalletBalance); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (p *PostgresDriverDirectory) Update(ctx context.Context, id string, patch DriverPatch) (*models.Driver, error) {
	var status, cityName sql.NullString
	var online sql.NullBool
	var balance sql.NullInt64
	if patch.Status != nil {
		status = sql.NullString{String: string(*patch.Status), Valid: true}
	}
	if patch.City != nil {
		cityName = sql.NullString{String: city.Canonical(*patch.City), Valid: true}
	}
	if patch.Online != nil {
		online = sql.NullBool{Bool: *patch.Online, Valid: true}
	}
	if patch.WalletBalance != nil {
		balance = sql.NullInt64{Int64: *patch.WalletBalance, Valid: true}
	}
	res, err := p.store.db.ExecContext(ctx, `UPDATE drivers SET
		status = COALESCE($1, status),
		city = COALESCE($2, city),
		online = COALESCE($3, online),
		wallet_balance = COALESCE($4, wallet_balance)
		WHERE id=$5`, status, cityName, online, balance, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return p.store.GetDriver(ctx, id)
}

func (p *PostgresDriverDirectory) Put(ctx context.Context, d *models.Driver) error {
	if d.ID == "" {
		d.ID = NewID()
	}
	d.City = city.Canonical(d.City)
	_, err := p.store.db.ExecContext(ctx, `INSERT INTO drivers(`+driverCols+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name, phone=EXCLUDED.phone, avatar_url=EXCLUDED.avatar_url,
			vehicle_type=EXCLUDED.vehicle_type, status=EXCLUDED.status,
			online=EXCLUDED.online, city=EXCLUDED.city`,
		d.ID, d.Name, d.Phone, d.AvatarURL, d.VehicleType, d.Status, d.Online, d.City, d.WalletBalance)
	return err
}
