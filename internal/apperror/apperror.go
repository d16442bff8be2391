// Package apperror defines the closed set of failure kinds returned by the
// domain services. Callers branch on Kind and Rule, never on message text.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindBusinessRule
	KindConcurrency
	KindFiscalRejection
	KindFiscalUnavailable
	KindIntegrityConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "EntityNotFound"
	case KindValidation:
		return "ValidationFailure"
	case KindBusinessRule:
		return "BusinessRuleViolation"
	case KindConcurrency:
		return "ConcurrencyConflict"
	case KindFiscalRejection:
		return "FiscalAuthorityRejection"
	case KindFiscalUnavailable:
		return "FiscalAuthorityUnavailable"
	case KindIntegrityConflict:
		return "IntegrityConflict"
	default:
		return "Unknown"
	}
}

// Rule names a business rule violated by an operation.
type Rule string

const (
	RuleOverpaymentRejected      Rule = "OverpaymentRejected"
	RuleDuplicateObligation      Rule = "DuplicateObligation"
	RuleObligationAlreadyPaid    Rule = "ObligationAlreadyPaid"
	RuleObligationNotVoid        Rule = "ObligationNotVoid"
	RuleObligationAlreadyVoid    Rule = "ObligationAlreadyVoid"
	RuleInvoiceAlreadyAuthorized Rule = "InvoiceAlreadyAuthorized"
	RuleInvoiceNotPayable        Rule = "InvoiceNotPayable"
	RuleInvoiceAlreadyPaid       Rule = "InvoiceAlreadyPaid"
	RuleInvoiceKeyBurned         Rule = "InvoiceKeyBurned"
	RuleInvoiceKeyNotBurned      Rule = "InvoiceKeyNotBurned"
	RuleInvoiceVoided            Rule = "InvoiceVoided"
	RuleTransferPending          Rule = "TransferPending"
	RuleReadingAlreadyBilled     Rule = "ReadingAlreadyBilled"
	RuleReadingOutOfOrder        Rule = "ReadingOutOfOrder"
	RulePaymentAmountMismatch    Rule = "PaymentAmountMismatch"
	RulePaymentAlreadyValidated  Rule = "PaymentAlreadyValidated"
	RuleDuplicateMeterCode       Rule = "DuplicateMeterCode"
	RuleMeterNotActive           Rule = "MeterNotActive"
	RuleTerrenoHasActiveMeter    Rule = "TerrenoHasActiveMeter"
	RuleTerrenoHasActiveService  Rule = "TerrenoHasActiveService"
	RuleDuplicateIdentification  Rule = "DuplicateIdentification"
	RuleInactiveEntity           Rule = "InactiveEntity"
	RuleInsufficientStock        Rule = "InsufficientStock"
	RuleJustificationOnPaidFine  Rule = "JustificationOnPaidFine"
	RuleJustificationExists      Rule = "JustificationExists"
	RuleJustificationNotAllowed  Rule = "JustificationNotAllowed"
	RuleJustificationResolved    Rule = "JustificationResolved"
	RuleAttendanceLocked         Rule = "AttendanceLocked"
	RuleEventClosed              Rule = "EventClosed"
	RuleCutOnActiveWithoutDebt   Rule = "CutOnActiveWithoutDebt"
	RuleIllegalServiceTransition Rule = "IllegalServiceTransition"
	RuleWorkOrderClosed          Rule = "WorkOrderClosed"
	RuleServiceTypeMismatch      Rule = "ServiceTypeMismatch"
	RuleMissingCatalogItem       Rule = "MissingCatalogItem"
)

// Error is the single concrete error type of the taxonomy.
type Error struct {
	Kind     Kind
	Entity   string
	ID       string
	Field    string
	Reason   string
	Rule     Rule
	Resource string
	Messages []string
	// Existing carries the winning row for DuplicateObligation and
	// IntegrityConflict so callers can continue idempotently.
	Existing any
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("%s %s no encontrado", e.Entity, e.ID)
	case KindValidation:
		return fmt.Sprintf("validacion: %s: %s", e.Field, e.Reason)
	case KindBusinessRule:
		if e.Reason != "" {
			return fmt.Sprintf("regla de negocio %s: %s", e.Rule, e.Reason)
		}
		return fmt.Sprintf("regla de negocio %s", e.Rule)
	case KindConcurrency:
		return fmt.Sprintf("conflicto de concurrencia en %s", e.Resource)
	case KindFiscalRejection:
		return "SRI rechazo el comprobante: " + strings.Join(e.Messages, "; ")
	case KindFiscalUnavailable:
		if e.Err != nil {
			return "SRI no disponible: " + e.Err.Error()
		}
		return "SRI no disponible"
	case KindIntegrityConflict:
		return fmt.Sprintf("conflicto de integridad en %s", e.Resource)
	}
	return "error desconocido"
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same call may succeed later without changes.
func (e *Error) Retryable() bool {
	return e.Kind == KindConcurrency || e.Kind == KindFiscalUnavailable
}

func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: fmt.Sprint(id)}
}

func Validation(field, reason string) *Error {
	return &Error{Kind: KindValidation, Field: field, Reason: reason}
}

func BusinessRule(rule Rule, reason string) *Error {
	return &Error{Kind: KindBusinessRule, Rule: rule, Reason: reason}
}

func Concurrency(resource string, err error) *Error {
	return &Error{Kind: KindConcurrency, Resource: resource, Err: err}
}

func FiscalRejection(messages []string) *Error {
	return &Error{Kind: KindFiscalRejection, Messages: messages}
}

func FiscalUnavailable(err error) *Error {
	return &Error{Kind: KindFiscalUnavailable, Err: err}
}

func IntegrityConflict(resource string, err error) *Error {
	return &Error{Kind: KindIntegrityConflict, Resource: resource, Err: err}
}

// Duplicate builds the DuplicateObligation failure carrying the existing row.
func Duplicate(existing any, reason string) *Error {
	e := BusinessRule(RuleDuplicateObligation, reason)
	e.Existing = existing
	return e
}

// As extracts the taxonomy error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the failure kind of err, or 0 when err is not a taxonomy error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// IsRule reports whether err is a BusinessRuleViolation of rule r.
func IsRule(err error, r Rule) bool {
	e, ok := As(err)
	return ok && e.Kind == KindBusinessRule && e.Rule == r
}
