package model

import "time"

type Customer struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	OptIn     bool      `db:"opt_in"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// CustomerPatch carries the fields supplied on update; nil means "leave unchanged".
type CustomerPatch struct {
	Email     *string
	OptIn     *bool
	FirstName *string
	LastName  *string
}
