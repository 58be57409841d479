// Package pg implements the marketplace store on PostgreSQL using
// database/sql with the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentchain.org/internal/market"
)

// Store wraps a *sql.DB pool. Writes that must be atomic go through InTx,
// which opens a serializable transaction and takes row locks on every read,
// so a read-validate-write sequence inside the callback is a critical
// section.
type Store struct {
	db *sql.DB
}

var _ market.Store = (*Store)(nil)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open pg: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing pool. Used by tests.
func NewFromDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Ping reports pool health for readiness probes.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// querier is the subset of *sql.DB and *sql.Tx the queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) CreateUser(ctx context.Context, u market.User) (market.User, error) {
	return createUser(ctx, s.db, u)
}
func (s *Store) GetUser(ctx context.Context, id int64) (market.User, error) {
	return getUser(ctx, s.db, id, false)
}
func (s *Store) GetUserByEmail(ctx context.Context, email string) (market.User, error) {
	return getUserByEmail(ctx, s.db, email)
}
func (s *Store) SaveUser(ctx context.Context, u market.User) (market.User, error) {
	return saveUser(ctx, s.db, u)
}

func (s *Store) CreateProperty(ctx context.Context, p market.Property) (market.Property, error) {
	return createProperty(ctx, s.db, p)
}
func (s *Store) GetProperty(ctx context.Context, id int64) (market.Property, error) {
	return getProperty(ctx, s.db, id, false)
}
func (s *Store) SaveProperty(ctx context.Context, p market.Property) (market.Property, error) {
	return saveProperty(ctx, s.db, p)
}
func (s *Store) ListProperties(ctx context.Context, f market.PropertyFilter) ([]market.Property, error) {
	return listProperties(ctx, s.db, f)
}

func (s *Store) CreateOffer(ctx context.Context, o market.Offer) (market.Offer, error) {
	return createOffer(ctx, s.db, o)
}
func (s *Store) GetOffer(ctx context.Context, id int64) (market.Offer, error) {
	return getOffer(ctx, s.db, id, false)
}
func (s *Store) SaveOffer(ctx context.Context, o market.Offer) (market.Offer, error) {
	return saveOffer(ctx, s.db, o)
}
func (s *Store) ListOffersByProperty(ctx context.Context, propertyID int64) ([]market.Offer, error) {
	return listOffers(ctx, s.db, "property_id", propertyID)
}
func (s *Store) ListOffersByTenant(ctx context.Context, tenantID int64) ([]market.Offer, error) {
	return listOffers(ctx, s.db, "tenant_id", tenantID)
}

func (s *Store) CreateAgreement(ctx context.Context, a market.Agreement) (market.Agreement, error) {
	return createAgreement(ctx, s.db, a)
}
func (s *Store) GetAgreement(ctx context.Context, id int64) (market.Agreement, error) {
	return getAgreement(ctx, s.db, id, false)
}
func (s *Store) SaveAgreement(ctx context.Context, a market.Agreement) (market.Agreement, error) {
	return saveAgreement(ctx, s.db, a)
}
func (s *Store) ListAgreementsByUser(ctx context.Context, userID int64) ([]market.Agreement, error) {
	return listAgreementsByUser(ctx, s.db, userID)
}

// InTx runs fn inside a serializable transaction. Reads made through the
// transactional view take FOR UPDATE locks, so concurrent deciders on the
// same offer serialize instead of both committing.
func (s *Store) InTx(ctx context.Context, fn func(tx market.Store) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// txStore is the transactional view handed to InTx callbacks.
type txStore struct {
	tx *sql.Tx
}

var _ market.Store = (*txStore)(nil)

func (t *txStore) CreateUser(ctx context.Context, u market.User) (market.User, error) {
	return createUser(ctx, t.tx, u)
}
func (t *txStore) GetUser(ctx context.Context, id int64) (market.User, error) {
	return getUser(ctx, t.tx, id, true)
}
func (t *txStore) GetUserByEmail(ctx context.Context, email string) (market.User, error) {
	return getUserByEmail(ctx, t.tx, email)
}
func (t *txStore) SaveUser(ctx context.Context, u market.User) (market.User, error) {
	return saveUser(ctx, t.tx, u)
}

func (t *txStore) CreateProperty(ctx context.Context, p market.Property) (market.Property, error) {
	return createProperty(ctx, t.tx, p)
}
func (t *txStore) GetProperty(ctx context.Context, id int64) (market.Property, error) {
	return getProperty(ctx, t.tx, id, true)
}
func (t *txStore) SaveProperty(ctx context.Context, p market.Property) (market.Property, error) {
	return saveProperty(ctx, t.tx, p)
}
func (t *txStore) ListProperties(ctx context.Context, f market.PropertyFilter) ([]market.Property, error) {
	return listProperties(ctx, t.tx, f)
}

func (t *txStore) CreateOffer(ctx context.Context, o market.Offer) (market.Offer, error) {
	return createOffer(ctx, t.tx, o)
}
func (t *txStore) GetOffer(ctx context.Context, id int64) (market.Offer, error) {
	return getOffer(ctx, t.tx, id, true)
}
func (t *txStore) SaveOffer(ctx context.Context, o market.Offer) (market.Offer, error) {
	return saveOffer(ctx, t.tx, o)
}
func (t *txStore) ListOffersByProperty(ctx context.Context, propertyID int64) ([]market.Offer, error) {
	return listOffers(ctx, t.tx, "property_id", propertyID)
}
func (t *txStore) ListOffersByTenant(ctx context.Context, tenantID int64) ([]market.Offer, error) {
	return listOffers(ctx, t.tx, "tenant_id", tenantID)
}

func (t *txStore) CreateAgreement(ctx context.Context, a market.Agreement) (market.Agreement, error) {
	return createAgreement(ctx, t.tx, a)
}
func (t *txStore) GetAgreement(ctx context.Context, id int64) (market.Agreement, error) {
	return getAgreement(ctx, t.tx, id, true)
}
func (t *txStore) SaveAgreement(ctx context.Context, a market.Agreement) (market.Agreement, error) {
	return saveAgreement(ctx, t.tx, a)
}
func (t *txStore) ListAgreementsByUser(ctx context.Context, userID int64) ([]market.Agreement, error) {
	return listAgreementsByUser(ctx, t.tx, userID)
}

// InTx on a transactional view reuses the open transaction.
func (t *txStore) InTx(ctx context.Context, fn func(tx market.Store) error) error {
	return fn(t)
}

// --- users ---

func createUser(ctx context.Context, q querier, u market.User) (market.User, error) {
	row := q.QueryRowContext(ctx, `
		insert into users (role, name, email, password_hash, wallet_address)
		values ($1, $2, $3, $4, $5)
		returning id, created_at`,
		string(u.Role), u.Name, u.Email, u.PasswordHash, u.WalletAddress)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return market.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func getUser(ctx context.Context, q querier, id int64, lock bool) (market.User, error) {
	query := `
		select id, role, name, email, password_hash, coalesce(wallet_address, ''), created_at
		from users where id = $1`
	if lock {
		query += " for update"
	}
	return scanUser(q.QueryRowContext(ctx, query, id))
}

func getUserByEmail(ctx context.Context, q querier, email string) (market.User, error) {
	return scanUser(q.QueryRowContext(ctx, `
		select id, role, name, email, password_hash, coalesce(wallet_address, ''), created_at
		from users where lower(email) = lower($1)`, email))
}

func scanUser(row *sql.Row) (market.User, error) {
	var u market.User
	var role string
	err := row.Scan(&u.ID, &role, &u.Name, &u.Email, &u.PasswordHash, &u.WalletAddress, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return market.User{}, market.ErrUserNotFound
	}
	if err != nil {
		return market.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Role = market.Role(role)
	return u, nil
}

func saveUser(ctx context.Context, q querier, u market.User) (market.User, error) {
	res, err := q.ExecContext(ctx, `
		update users
		set name = $2, email = $3, password_hash = $4, wallet_address = $5
		where id = $1`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.WalletAddress)
	if err != nil {
		return market.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, requireRow(res, market.ErrUserNotFound)
}

// --- properties ---

func createProperty(ctx context.Context, q querier, p market.Property) (market.Property, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return market.Property{}, fmt.Errorf("encode images: %w", err)
	}
	p.Status = market.PropertyOpen
	row := q.QueryRowContext(ctx, `
		insert into properties
			(owner_id, title, description, images, video_url, price, status,
			 location, bedrooms, bathrooms)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning id, created_at, updated_at`,
		p.OwnerID, p.Title, p.Description, images, p.VideoURL, p.Price,
		string(p.Status), p.Location, p.Bedrooms, p.Bathrooms)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return market.Property{}, fmt.Errorf("insert property: %w", err)
	}
	return p, nil
}

const propertyCols = `id, owner_id, title, description, images, coalesce(video_url, ''), price, status, coalesce(location, ''), bedrooms, bathrooms, created_at, updated_at`

func getProperty(ctx context.Context, q querier, id int64, lock bool) (market.Property, error) {
	query := "select " + propertyCols + " from properties where id = $1"
	if lock {
		query += " for update"
	}
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return market.Property{}, fmt.Errorf("select property: %w", err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return market.Property{}, fmt.Errorf("select property: %w", err)
		}
		return market.Property{}, market.ErrPropertyNotFound
	}
	return scanProperty(rows)
}

func scanProperty(rows *sql.Rows) (market.Property, error) {
	var p market.Property
	var status string
	var images []byte
	err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &images,
		&p.VideoURL, &p.Price, &status, &p.Location,
		&p.Bedrooms, &p.Bathrooms, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return market.Property{}, fmt.Errorf("scan property: %w", err)
	}
	p.Status = market.PropertyStatus(status)
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return market.Property{}, fmt.Errorf("decode images: %w", err)
		}
	}
	return p, nil
}

func saveProperty(ctx context.Context, q querier, p market.Property) (market.Property, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return market.Property{}, fmt.Errorf("encode images: %w", err)
	}
	p.UpdatedAt = time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		update properties
		set title = $2, description = $3, images = $4, video_url = $5,
		    price = $6, status = $7, location = $8, bedrooms = $9,
		    bathrooms = $10, updated_at = $11
		where id = $1`,
		p.ID, p.Title, p.Description, images, p.VideoURL, p.Price,
		string(p.Status), p.Location, p.Bedrooms, p.Bathrooms, p.UpdatedAt)
	if err != nil {
		return market.Property{}, fmt.Errorf("update property: %w", err)
	}
	return p, requireRow(res, market.ErrPropertyNotFound)
}

func listProperties(ctx context.Context, q querier, f market.PropertyFilter) ([]market.Property, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.OwnerID != 0 {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.MinPrice > 0 {
		add("price >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("price <= $%d", f.MaxPrice)
	}
	query := "select " + propertyCols + " from properties"
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by id"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select properties: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []market.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- offers ---

func createOffer(ctx context.Context, q querier, o market.Offer) (market.Offer, error) {
	o.Status = market.OfferPending
	row := q.QueryRowContext(ctx, `
		insert into offers (property_id, tenant_id, amount, status, message, previous_offer_id)
		values ($1, $2, $3, $4, $5, nullif($6, 0))
		returning id, created_at, updated_at`,
		o.PropertyID, o.TenantID, o.Amount, string(o.Status), o.Message, o.PreviousOfferID)
	if err := row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return market.Offer{}, fmt.Errorf("insert offer: %w", err)
	}
	return o, nil
}

const offerCols = `id, property_id, tenant_id, amount, status, coalesce(message, ''), coalesce(previous_offer_id, 0), created_at, updated_at`

func getOffer(ctx context.Context, q querier, id int64, lock bool) (market.Offer, error) {
	query := "select " + offerCols + " from offers where id = $1"
	if lock {
		query += " for update"
	}
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return market.Offer{}, fmt.Errorf("select offer: %w", err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return market.Offer{}, fmt.Errorf("select offer: %w", err)
		}
		return market.Offer{}, market.ErrOfferNotFound
	}
	return scanOffer(rows)
}

func scanOffer(rows *sql.Rows) (market.Offer, error) {
	var o market.Offer
	var status string
	err := rows.Scan(&o.ID, &o.PropertyID, &o.TenantID, &o.Amount, &status,
		&o.Message, &o.PreviousOfferID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return market.Offer{}, fmt.Errorf("scan offer: %w", err)
	}
	o.Status = market.OfferStatus(status)
	return o, nil
}

func saveOffer(ctx context.Context, q querier, o market.Offer) (market.Offer, error) {
	o.UpdatedAt = time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		update offers
		set amount = $2, status = $3, message = $4, updated_at = $5
		where id = $1`,
		o.ID, o.Amount, string(o.Status), o.Message, o.UpdatedAt)
	if err != nil {
		return market.Offer{}, fmt.Errorf("update offer: %w", err)
	}
	return o, requireRow(res, market.ErrOfferNotFound)
}

func listOffers(ctx context.Context, q querier, col string, id int64) ([]market.Offer, error) {
	query := "select " + offerCols + " from offers where " + col + " = $1 order by id"
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("select offers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []market.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- agreements ---

func createAgreement(ctx context.Context, q querier, a market.Agreement) (market.Agreement, error) {
	a.Status = market.AgreementReadyToSign
	row := q.QueryRowContext(ctx, `
		insert into agreements (property_id, owner_id, tenant_id, final_amount, status)
		values ($1, $2, $3, $4, $5)
		returning id, created_at`,
		a.PropertyID, a.OwnerID, a.TenantID, a.FinalAmount, string(a.Status))
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return market.Agreement{}, fmt.Errorf("insert agreement: %w", err)
	}
	return a, nil
}

const agreementCols = `id, property_id, owner_id, tenant_id, final_amount, status, coalesce(ipfs_hash, ''), coalesce(tx_hash, ''), signed_at, created_at`

func getAgreement(ctx context.Context, q querier, id int64, lock bool) (market.Agreement, error) {
	query := "select " + agreementCols + " from agreements where id = $1"
	if lock {
		query += " for update"
	}
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return market.Agreement{}, fmt.Errorf("select agreement: %w", err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return market.Agreement{}, fmt.Errorf("select agreement: %w", err)
		}
		return market.Agreement{}, market.ErrAgreementNotFound
	}
	return scanAgreement(rows)
}

func scanAgreement(rows *sql.Rows) (market.Agreement, error) {
	var a market.Agreement
	var status string
	var signedAt sql.NullTime
	err := rows.Scan(&a.ID, &a.PropertyID, &a.OwnerID, &a.TenantID, &a.FinalAmount,
		&status, &a.IPFSHash, &a.TxHash, &signedAt, &a.CreatedAt)
	if err != nil {
		return market.Agreement{}, fmt.Errorf("scan agreement: %w", err)
	}
	a.Status = market.AgreementStatus(status)
	if signedAt.Valid {
		t := signedAt.Time
		a.SignedAt = &t
	}
	return a, nil
}

func saveAgreement(ctx context.Context, q querier, a market.Agreement) (market.Agreement, error) {
	var signedAt sql.NullTime
	if a.SignedAt != nil {
		signedAt = sql.NullTime{Time: *a.SignedAt, Valid: true}
	}
	res, err := q.ExecContext(ctx, `
		update agreements
		set status = $2, ipfs_hash = nullif($3, ''), tx_hash = nullif($4, ''), signed_at = $5
		where id = $1`,
		a.ID, string(a.Status), a.IPFSHash, a.TxHash, signedAt)
	if err != nil {
		return market.Agreement{}, fmt.Errorf("update agreement: %w", err)
	}
	return a, requireRow(res, market.ErrAgreementNotFound)
}

func listAgreementsByUser(ctx context.Context, q querier, userID int64) ([]market.Agreement, error) {
	rows, err := q.QueryContext(ctx, `
		select `+agreementCols+`
		from agreements where owner_id = $1 or tenant_id = $1 order by id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select agreements: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []market.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
