package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmoiron/sqlx"
	"go.nhat.io/clock"
)

const customersTable = "customers"

var customerColumns = []string{"id", "email", "opt_in", "first_name", "last_name", "created_at", "updated_at"}

// CustomersRepository persists rows of the customers table.
// Mutating methods run inside the caller's transaction.
type CustomersRepository interface {
	List(ctx context.Context, limit, offset int) ([]model.Customer, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error)
	EmailTaken(ctx context.Context, tx *sqlx.Tx, email string, exceptID int64) (bool, error)
	Create(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error
	Update(ctx context.Context, tx *sqlx.Tx, id int64, patch model.CustomerPatch) error
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	SetOptIn(ctx context.Context, tx *sqlx.Tx, id int64, optIn bool) error
	UpsertByEmail(ctx context.Context, tx *sqlx.Tx, c model.Customer) error
}

type CustomersRepositoryImpl struct {
	db    *sqlx.DB
	clock clock.Clock
}

func NewCustomersRepository(db *sqlx.DB, c clock.Clock) *CustomersRepositoryImpl {
	if c == nil {
		c = clock.New()
	}
	return &CustomersRepositoryImpl{db: db, clock: c}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

// now is truncated to the TIMESTAMP column precision so returned rows match what is stored.
func (r *CustomersRepositoryImpl) now() time.Time {
	return r.clock.Now().UTC().Truncate(time.Second)
}

// List returns a page of customers in primary-key order.
func (r *CustomersRepositoryImpl) List(ctx context.Context, limit, offset int) ([]model.Customer, error) {
	if limit <= 0 {
		limit = 15
	}
	if offset < 0 {
		return nil, fmt.Errorf("list customers: negative offset %d", offset)
	}

	q, args, err := sq.Select(customerColumns...).
		From(customersTable).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows := make([]model.Customer, 0, limit)
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CustomersRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM customers`); err != nil {
		return 0, err
	}
	return n, nil
}

// GetByID returns nil, nil when no row matches.
func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT id, email, opt_in, first_name, last_name, created_at, updated_at
		  FROM customers
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetForUpdate locks the row for the rest of tx. Returns nil, nil when no row matches.
func (r *CustomersRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Customer, error) {
	var c model.Customer
	err := tx.GetContext(ctx, &c, `
		SELECT id, email, opt_in, first_name, last_name, created_at, updated_at
		  FROM customers
		 WHERE id = ?
		 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// EmailTaken checks whether another row (id != exceptID) already holds email.
// Pass exceptID = 0 on create.
func (r *CustomersRepositoryImpl) EmailTaken(ctx context.Context, tx *sqlx.Tx, email string, exceptID int64) (bool, error) {
	var one int
	err := tx.QueryRowxContext(ctx,
		`SELECT 1 FROM customers WHERE email = ? AND id <> ? LIMIT 1`, email, exceptID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create inserts c and fills in its ID and timestamps.
func (r *CustomersRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, c *model.Customer) error {
	now := r.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO customers
		    (email, opt_in, first_name, last_name, created_at, updated_at)
		VALUES
		    (?,     ?,      ?,          ?,         ?,          ?)
	`, c.Email, c.OptIn, c.FirstName, c.LastName, now, now)
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// Update writes only the fields set in patch and always refreshes updated_at.
func (r *CustomersRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, id int64, patch model.CustomerPatch) error {
	b := sq.Update(customersTable)
	if patch.Email != nil {
		b = b.Set("email", *patch.Email)
	}
	if patch.OptIn != nil {
		b = b.Set("opt_in", *patch.OptIn)
	}
	if patch.FirstName != nil {
		b = b.Set("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		b = b.Set("last_name", *patch.LastName)
	}
	q, args, err := b.Set("updated_at", r.now()).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, q, args...)
	return err
}

func (r *CustomersRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	return err
}

func (r *CustomersRepositoryImpl) SetOptIn(ctx context.Context, tx *sqlx.Tx, id int64, optIn bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE customers
		SET opt_in = ?, updated_at = ?
		WHERE id = ?
	`, optIn, r.now(), id)
	return err
}

// UpsertByEmail is used by the seeder; email is the natural key.
func (r *CustomersRepositoryImpl) UpsertByEmail(ctx context.Context, tx *sqlx.Tx, c model.Customer) error {
	now := r.now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO customers
		    (email, opt_in, first_name, last_name, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		    opt_in     = VALUES(opt_in),
		    first_name = VALUES(first_name),
		    last_name  = VALUES(last_name),
		    updated_at = VALUES(updated_at)
	`, c.Email, c.OptIn, c.FirstName, c.LastName, now, now)
	return err
}
