package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const maxDumpChain = 8

// ErrorDump is the log-only view of a failed request. It never reaches the
// response body.
type ErrorDump struct {
	Message   string `json:"message"`
	Code      Code   `json:"code,omitempty"`
	Reason    Reason `json:"reason,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	Chain []string `json:"chain,omitempty"`

	Postgres *PGDetail `json:"postgres,omitempty"`
}

// PGDetail is the subset of a driver error worth logging. Both pgx and lib/pq
// errors are flattened into it.
type PGDetail struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{Message: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Reason = te.Reason()
		d.Retryable = Retryable(err)
	}

	for e := err; e != nil && len(d.Chain) < maxDumpChain; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	d.Postgres = postgresDetail(err)
	return d
}

func postgresDetail(err error) *PGDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
