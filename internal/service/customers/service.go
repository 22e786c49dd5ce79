package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmehdipour/customers-api/internal/db"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/repository"
	"github.com/jmoiron/sqlx"
)

// DefaultPerPage is the fixed page size of List.
const DefaultPerPage = 15

var (
	ErrNotFound   = errors.New("customer not found")
	ErrEmailTaken = errors.New("email has already been taken")
)

// StoreError wraps a failure of a transactional mutation after rollback.
// Conflict is set when the store rejected the write on the email unique key.
type StoreError struct {
	Op       string
	Conflict bool
	Err      error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// Page is one slice of the customer list plus the figures needed to paginate.
type Page struct {
	Items   []model.Customer
	Total   int64
	Page    int
	PerPage int
}

// LastPage is at least 1, even for an empty table.
func (p Page) LastPage() int {
	if p.Total == 0 || p.PerPage <= 0 {
		return 1
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// Service implements the customer operations. Every mutation runs in its own
// transaction: begin, lock/check, write, commit; any failure rolls back.
type Service struct {
	db      *sqlx.DB
	repo    repository.CustomersRepository
	perPage int
	txOpts  *sql.TxOptions
}

func New(dbx *sqlx.DB, repo repository.CustomersRepository) *Service {
	return &Service{
		db:      dbx,
		repo:    repo,
		perPage: DefaultPerPage,
		txOpts:  &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

// inTx runs fn in a read-committed transaction and commits when fn succeeds.
// Errors from fn are returned unchanged so sentinels survive; begin/commit
// failures are wrapped in StoreError.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, s.txOpts)
	if err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: op, Conflict: db.IsDuplicateKey(err), Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func storeErr(op, step string, err error) error {
	return &StoreError{Op: op, Conflict: db.IsDuplicateKey(err), Err: fmt.Errorf("%s: %w", step, err)}
}

// List returns the given 1-based page; page < 1 is treated as 1.
func (s *Service) List(ctx context.Context, page int) (Page, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count customers: %w", err)
	}

	items := []model.Customer{}
	// pages past the last one are empty; checked before the offset multiply can overflow
	if last := (total + int64(s.perPage) - 1) / int64(s.perPage); int64(page) <= last {
		items, err = s.repo.List(ctx, s.perPage, (page-1)*s.perPage)
		if err != nil {
			return Page{}, fmt.Errorf("list customers: %w", err)
		}
	}

	return Page{Items: items, Total: total, Page: page, PerPage: s.perPage}, nil
}

// Get is read-only and runs outside a transaction.
func (s *Service) Get(ctx context.Context, id int64) (model.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.Customer{}, fmt.Errorf("get customer %d: %w", id, err)
	}
	if c == nil {
		return model.Customer{}, ErrNotFound
	}
	return *c, nil
}

// Create inserts a customer whose fields were already validated.
// The in-transaction email check turns the common duplicate case into
// ErrEmailTaken; the unique key still guards concurrent inserts.
func (s *Service) Create(ctx context.Context, in model.Customer) (model.Customer, error) {
	const op = "create customer"

	c := model.Customer{
		Email:     in.Email,
		OptIn:     in.OptIn,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}

	err := s.inTx(ctx, op, func(tx *sqlx.Tx) error {
		taken, err := s.repo.EmailTaken(ctx, tx, c.Email, 0)
		if err != nil {
			return storeErr(op, "check email", err)
		}
		if taken {
			return ErrEmailTaken
		}

		if err := s.repo.Create(ctx, tx, &c); err != nil {
			return storeErr(op, "insert", err)
		}
		return nil
	})
	if err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// Update applies patch to customer id. Only supplied fields change.
func (s *Service) Update(ctx context.Context, id int64, patch model.CustomerPatch) (model.Customer, error) {
	const op = "update customer"

	var updated model.Customer
	err := s.inTx(ctx, op, func(tx *sqlx.Tx) error {
		cur, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return storeErr(op, "lock", err)
		}
		if cur == nil {
			return ErrNotFound
		}

		// the row's own current email never conflicts with itself
		if patch.Email != nil && *patch.Email != cur.Email {
			taken, err := s.repo.EmailTaken(ctx, tx, *patch.Email, id)
			if err != nil {
				return storeErr(op, "check email", err)
			}
			if taken {
				return ErrEmailTaken
			}
		}

		if err := s.repo.Update(ctx, tx, id, patch); err != nil {
			return storeErr(op, "update", err)
		}

		after, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return storeErr(op, "reload", err)
		}
		if after == nil {
			return storeErr(op, "reload", sql.ErrNoRows)
		}
		updated = *after
		return nil
	})
	if err != nil {
		return model.Customer{}, err
	}
	return updated, nil
}

// Delete hard-deletes customer id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	const op = "delete customer"

	return s.inTx(ctx, op, func(tx *sqlx.Tx) error {
		cur, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return storeErr(op, "lock", err)
		}
		if cur == nil {
			return ErrNotFound
		}

		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return storeErr(op, "delete", err)
		}
		return nil
	})
}

// ToggleOptIn flips opt_in under a row lock so concurrent toggles serialize.
func (s *Service) ToggleOptIn(ctx context.Context, id int64) (model.Customer, error) {
	const op = "toggle customer opt-in"

	var updated model.Customer
	err := s.inTx(ctx, op, func(tx *sqlx.Tx) error {
		cur, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return storeErr(op, "lock", err)
		}
		if cur == nil {
			return ErrNotFound
		}

		if err := s.repo.SetOptIn(ctx, tx, id, !cur.OptIn); err != nil {
			return storeErr(op, "set opt_in", err)
		}

		after, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return storeErr(op, "reload", err)
		}
		if after == nil {
			return storeErr(op, "reload", sql.ErrNoRows)
		}
		updated = *after
		return nil
	})
	if err != nil {
		return model.Customer{}, err
	}
	return updated, nil
}
