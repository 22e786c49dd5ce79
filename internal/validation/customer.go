package validation

import (
	"github.com/jmehdipour/customers-api/internal/model"
)

// CreateCustomerRequest holds the create body; every field is required.
type CreateCustomerRequest struct {
	Email     *string `json:"email" validate:"required,notblank,max=255,email"`
	OptIn     *bool   `json:"opt_in" validate:"required"`
	FirstName *string `json:"first_name" validate:"required,notblank,max=255"`
	LastName  *string `json:"last_name" validate:"required,notblank,max=255"`
}

func (r CreateCustomerRequest) Customer() model.Customer {
	return model.Customer{
		Email:     *r.Email,
		OptIn:     *r.OptIn,
		FirstName: *r.FirstName,
		LastName:  *r.LastName,
	}
}

// UpdateCustomerRequest holds the update body; absent fields stay nil.
type UpdateCustomerRequest struct {
	Email     *string `json:"email" validate:"omitnil,notblank,max=255,email"`
	OptIn     *bool   `json:"opt_in"`
	FirstName *string `json:"first_name" validate:"omitnil,notblank,max=255"`
	LastName  *string `json:"last_name" validate:"omitnil,notblank,max=255"`
}

func (r UpdateCustomerRequest) Patch() model.CustomerPatch {
	return model.CustomerPatch{
		Email:     r.Email,
		OptIn:     r.OptIn,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// DecodeCreate parses and validates a create body.
// It returns ErrMalformedBody or Errors on failure.
func (val *Validator) DecodeCreate(body []byte) (CreateCustomerRequest, error) {
	var req CreateCustomerRequest
	m, err := fields(body)
	if err != nil {
		return req, err
	}

	errs := Errors{}
	decodeString(m, "email", &req.Email, errs)
	decodeBool(m, "opt_in", &req.OptIn, errs)
	decodeString(m, "first_name", &req.FirstName, errs)
	decodeString(m, "last_name", &req.LastName, errs)
	val.check(req, errs)

	return req, orNil(errs)
}

// DecodeUpdate parses and validates an update body.
// It returns ErrMalformedBody or Errors on failure.
func (val *Validator) DecodeUpdate(body []byte) (UpdateCustomerRequest, error) {
	var req UpdateCustomerRequest
	m, err := fields(body)
	if err != nil {
		return req, err
	}

	errs := Errors{}
	decodeString(m, "email", &req.Email, errs)
	decodeBool(m, "opt_in", &req.OptIn, errs)
	decodeString(m, "first_name", &req.FirstName, errs)
	decodeString(m, "last_name", &req.LastName, errs)
	val.check(req, errs)

	return req, orNil(errs)
}
