package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// constraintGuards names what each schema constraint protects, so a log line
// for a 23505 says "duplicate checkout" instead of an index name.
var constraintGuards = map[string]string{
	"idx_orders_idempotency_key":     "one order per checkout idempotency key",
	"orders_idempotency_key_key":     "one order per checkout idempotency key",
	"orders_total_chk":               "order total equals subtotal plus delivery",
	"orders_status_chk":              "known order status",
	"idx_addresses_one_default":      "one default address per customer",
	"idx_customers_phone":            "one customer per phone number",
	"customers_preferred_locale_chk": "supported preferred locale",
	"idx_products_sku":               "unique product sku",
	"idx_categories_slug":            "unique category slug",
	"idx_outbox_dlq_event_id":        "one dead letter per outbox event",
	"carts_pkey":                     "one cart per customer",
}

// Postgres reports these for optimistic races on carts and orders; the
// statement is safe to retry.
var retryablePGCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// ErrorDump is a log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
	// Step is the checkout step recorded in the error details, if any.
	Step string `json:"step,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	Guard        string `json:"guard,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
		if details, ok := te.Details().(map[string]any); ok {
			if step, ok := details["step"]; ok {
				d.Step = fmt.Sprint(step)
			}
		}
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGDetail = pgxErr.Detail
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGDetail = pqErr.Detail
	default:
		return d
	}
	d.Guard = constraintGuards[d.PGConstraint]
	if retryablePGCodes[d.PGCode] {
		d.Retryable = true
	}
	return d
}
