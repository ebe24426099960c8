// Package policy implements row-level access control for email records.
//
// The evaluator is a pure predicate over (operation, principal, pre-row,
// post-row): stateless, recomputed fresh per operation, default-deny. Access
// is expressed as a fixed set of row security rules, each granting a single
// operation to authenticated principals subject to a USING predicate on the
// existing row and a WITH CHECK predicate on the proposed row. A decision is
// ALLOW iff at least one rule for the operation passes both applicable
// predicates; everything else is DENY.
package policy

import (
	"github.com/google/uuid"
	"github.com/marvargas/email-registry/models"
	"go.uber.org/zap"
)

// Operation identifies the row-level operation being attempted.
type Operation string

const (
	OperationSelect Operation = "SELECT"
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// Principal is the ambient caller identity supplied by the authentication
// layer. It is read-only to this package.
type Principal struct {
	ID            uuid.UUID
	Authenticated bool
}

// Anonymous is the principal used for unauthenticated callers.
var Anonymous = Principal{}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	// Rule names the granting rule when Allowed, empty otherwise.
	Rule string
	// Reason explains a denial for logging and error messages.
	Reason string
}

// RowPredicate checks a principal against a single row. A nil row is passed
// for operations that have no row of that kind (e.g. no pre-row on INSERT).
type RowPredicate func(p Principal, row *models.EmailRecord) bool

// Rule grants one operation to authenticated principals, gated by row
// predicates. Using applies to the existing row (SELECT, UPDATE, DELETE);
// WithCheck applies to the proposed row (INSERT, UPDATE). A nil predicate
// means unconditional.
type Rule struct {
	Name      string
	Command   Operation
	Using     RowPredicate
	WithCheck RowPredicate
}

// Evaluator decides ALLOW or DENY for every operation against an email
// record. Evaluation order is fixed: authentication first, then the rules
// for the operation, default deny.
type Evaluator struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator carrying the four rules governing the
// added_emails relation.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{
		logger: logger,
		rules: []Rule{
			{
				Name:    "authenticated_read",
				Command: OperationSelect,
			},
			{
				Name:    "authenticated_insert",
				Command: OperationInsert,
			},
			{
				Name:      "owner_update",
				Command:   OperationUpdate,
				Using:     ownsRow,
				WithCheck: ownsRow,
			},
			{
				Name:    "owner_delete",
				Command: OperationDelete,
				Using:   ownsRow,
			},
		},
	}
}

// Decide evaluates the rules for op against the given rows. pre is the
// existing row (nil for INSERT and unfiltered SELECT), post the proposed row
// (nil for SELECT and DELETE).
func (e *Evaluator) Decide(op Operation, p Principal, pre, post *models.EmailRecord) Decision {
	if !p.Authenticated {
		return Decision{Allowed: false, Reason: "caller is not authenticated"}
	}

	for _, rule := range e.rules {
		if rule.Command != op {
			continue
		}
		if rule.Using != nil && !rule.Using(p, pre) {
			continue
		}
		if rule.WithCheck != nil && !rule.WithCheck(p, post) {
			continue
		}

		e.logger.Debug("access granted",
			zap.String("operation", string(op)),
			zap.String("rule", rule.Name),
			zap.String("principal", p.ID.String()))

		return Decision{Allowed: true, Rule: rule.Name}
	}

	e.logger.Debug("access denied",
		zap.String("operation", string(op)),
		zap.String("principal", p.ID.String()))

	return Decision{Allowed: false, Reason: denyReason(op)}
}

// ownsRow is the owner-match predicate shared by the UPDATE and DELETE rules.
// A nil row or a row with no creator never matches, so ownership cannot be
// cleared or reassigned through an update.
func ownsRow(p Principal, row *models.EmailRecord) bool {
	return row != nil && row.OwnedBy(p.ID)
}

func denyReason(op Operation) string {
	switch op {
	case OperationUpdate, OperationDelete:
		return "caller does not own the record"
	default:
		return "no policy grants " + string(op)
	}
}
