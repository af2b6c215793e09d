package ledger

import (
	"fmt"
	"sort"

	"github.com/robinvdvleuten/beancount/ast"
)

// AccountNotOpenError is returned when a directive references an account
// that hasn't been opened, or that was open under a different booking
// context at the given date.
type AccountNotOpenError struct {
	Account   ast.Account
	Date      *ast.Date
	Pos       ast.Position
	Directive ast.Directive
}

func (e *AccountNotOpenError) Error() string {
	return fmt.Sprintf("%s: Invalid reference to unknown account '%s'", e.location(), e.Account)
}

func (e *AccountNotOpenError) location() string {
	if e.Pos.Filename != "" {
		return fmt.Sprintf("%s:%d", e.Pos.Filename, e.Pos.Line)
	}
	return e.Date.Format("2006-01-02")
}

// GetPosition implements the interface cli.ErrorRenderer renders against.
func (e *AccountNotOpenError) GetPosition() ast.Position { return e.Pos }

// GetDirective implements the interface cli.ErrorRenderer renders against.
func (e *AccountNotOpenError) GetDirective() ast.Directive { return e.Directive }

func newAccountNotOpenError(directive ast.Directive, date *ast.Date, account ast.Account) *AccountNotOpenError {
	return &AccountNotOpenError{
		Account:   account,
		Date:      date,
		Pos:       directive.Position(),
		Directive: directive,
	}
}

// NewAccountNotOpenError reports a transaction posting referencing an
// account that isn't open on the transaction's date.
func NewAccountNotOpenError(txn *ast.Transaction, account ast.Account) *AccountNotOpenError {
	return newAccountNotOpenError(txn, txn.Date, account)
}

// NewAccountNotOpenErrorFromBalance reports a balance assertion against an
// account that isn't open.
func NewAccountNotOpenErrorFromBalance(balance *ast.Balance) *AccountNotOpenError {
	return newAccountNotOpenError(balance, balance.Date, balance.Account)
}

// NewAccountNotOpenErrorFromPad reports a pad directive naming an account
// (either side) that isn't open.
func NewAccountNotOpenErrorFromPad(pad *ast.Pad, account ast.Account) *AccountNotOpenError {
	return newAccountNotOpenError(pad, pad.Date, account)
}

// NewAccountNotOpenErrorFromNote reports a note attached to an account
// that isn't open.
func NewAccountNotOpenErrorFromNote(note *ast.Note) *AccountNotOpenError {
	return newAccountNotOpenError(note, note.Date, note.Account)
}

// NewAccountNotOpenErrorFromDocument reports a document attached to an
// account that isn't open.
func NewAccountNotOpenErrorFromDocument(doc *ast.Document) *AccountNotOpenError {
	return newAccountNotOpenError(doc, doc.Date, doc.Account)
}

// AccountAlreadyOpenError is returned when trying to open an account that's already open.
type AccountAlreadyOpenError struct {
	Directive  *ast.Open
	Account    ast.Account
	Date       *ast.Date
	OpenedDate *ast.Date
}

func (e *AccountAlreadyOpenError) Error() string {
	return fmt.Sprintf("%s: Account %s is already open (opened on %s)",
		e.Date.Format("2006-01-02"), e.Account, e.OpenedDate.Format("2006-01-02"))
}

func (e *AccountAlreadyOpenError) GetPosition() ast.Position   { return e.Directive.Position() }
func (e *AccountAlreadyOpenError) GetDirective() ast.Directive { return e.Directive }

// NewAccountAlreadyOpenError reports a duplicate open directive.
func NewAccountAlreadyOpenError(open *ast.Open, openedDate *ast.Date) *AccountAlreadyOpenError {
	return &AccountAlreadyOpenError{
		Directive:  open,
		Account:    open.Account,
		Date:       open.Date,
		OpenedDate: openedDate,
	}
}

// AccountAlreadyClosedError is returned when trying to use or close an account that's already closed.
type AccountAlreadyClosedError struct {
	Directive  *ast.Close
	Account    ast.Account
	Date       *ast.Date
	ClosedDate *ast.Date
}

func (e *AccountAlreadyClosedError) Error() string {
	return fmt.Sprintf("%s: Account %s is already closed (closed on %s)",
		e.Date.Format("2006-01-02"), e.Account, e.ClosedDate.Format("2006-01-02"))
}

func (e *AccountAlreadyClosedError) GetPosition() ast.Position   { return e.Directive.Position() }
func (e *AccountAlreadyClosedError) GetDirective() ast.Directive { return e.Directive }

// NewAccountAlreadyClosedError reports a duplicate close directive.
func NewAccountAlreadyClosedError(close *ast.Close, closedDate *ast.Date) *AccountAlreadyClosedError {
	return &AccountAlreadyClosedError{
		Directive:  close,
		Account:    close.Account,
		Date:       close.Date,
		ClosedDate: closedDate,
	}
}

// AccountNotClosedError is returned when trying to close an account that was never opened.
type AccountNotClosedError struct {
	Directive *ast.Close
	Account   ast.Account
	Date      *ast.Date
}

func (e *AccountNotClosedError) Error() string {
	return fmt.Sprintf("%s: Cannot close account %s that was never opened",
		e.Date.Format("2006-01-02"), e.Account)
}

func (e *AccountNotClosedError) GetPosition() ast.Position   { return e.Directive.Position() }
func (e *AccountNotClosedError) GetDirective() ast.Directive { return e.Directive }

// NewAccountNotClosedError reports a close directive for an unopened account.
func NewAccountNotClosedError(close *ast.Close) *AccountNotClosedError {
	return &AccountNotClosedError{
		Directive: close,
		Account:   close.Account,
		Date:      close.Date,
	}
}

// TransactionNotBalancedError is returned when a transaction doesn't balance.
type TransactionNotBalancedError struct {
	Transaction *ast.Transaction
	Residuals   map[string]string // currency -> amount string (unbalanced amounts)
}

// Error returns a bean-check style error message with filename:line prefix.
func (e *TransactionNotBalancedError) Error() string {
	location := e.Transaction.Date.Format("2006-01-02")
	if pos := e.Transaction.Position(); pos.Filename != "" {
		location = fmt.Sprintf("%s:%d", pos.Filename, pos.Line)
	}
	return fmt.Sprintf("%s: Transaction does not balance: %s", location, e.formatResiduals())
}

func (e *TransactionNotBalancedError) GetPosition() ast.Position   { return e.Transaction.Position() }
func (e *TransactionNotBalancedError) GetDirective() ast.Directive { return e.Transaction }

// formatResiduals formats the residual amounts in a consistent order.
func (e *TransactionNotBalancedError) formatResiduals() string {
	if len(e.Residuals) == 0 {
		return ""
	}

	currencies := make([]string, 0, len(e.Residuals))
	for currency := range e.Residuals {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	result := "("
	for i, currency := range currencies {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%s %s", e.Residuals[currency], currency)
	}
	result += ")"

	return result
}

// NewTransactionNotBalancedError reports a transaction whose postings leave
// a non-zero residual after interpolation.
func NewTransactionNotBalancedError(txn *ast.Transaction, residuals map[string]string) *TransactionNotBalancedError {
	return &TransactionNotBalancedError{Transaction: txn, Residuals: residuals}
}

// InvalidAmountError is returned when an amount cannot be parsed.
type InvalidAmountError struct {
	Directive  ast.Directive
	Date       *ast.Date
	Account    ast.Account
	Value      string
	Underlying error
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("%s: Invalid amount %q for account %s: %v",
		e.Date.Format("2006-01-02"), e.Value, e.Account, e.Underlying)
}

func (e *InvalidAmountError) GetPosition() ast.Position   { return e.Directive.Position() }
func (e *InvalidAmountError) GetDirective() ast.Directive { return e.Directive }

// NewInvalidAmountError reports a posting amount that failed to parse.
func NewInvalidAmountError(txn *ast.Transaction, account ast.Account, value string, underlying error) *InvalidAmountError {
	return &InvalidAmountError{Directive: txn, Date: txn.Date, Account: account, Value: value, Underlying: underlying}
}

// NewInvalidAmountErrorFromBalance reports a balance assertion amount that
// failed to parse.
func NewInvalidAmountErrorFromBalance(balance *ast.Balance, underlying error) *InvalidAmountError {
	return &InvalidAmountError{
		Directive:  balance,
		Date:       balance.Date,
		Account:    balance.Account,
		Value:      balance.Amount.Value,
		Underlying: underlying,
	}
}

// InvalidCostError is returned when a posting's cost specification fails to
// parse or violates a booking precondition (e.g. the legacy total-cost
// form).
type InvalidCostError struct {
	Transaction  *ast.Transaction
	Account      ast.Account
	PostingIndex int
	CostSpec     string
	Underlying   error
}

func (e *InvalidCostError) Error() string {
	return fmt.Sprintf("%s: Invalid cost specification (Posting #%d: %s): %s: %v",
		e.Transaction.Date.Format("2006-01-02"), e.PostingIndex+1, e.Account, e.CostSpec, e.Underlying)
}

func (e *InvalidCostError) GetPosition() ast.Position   { return e.Transaction.Position() }
func (e *InvalidCostError) GetDirective() ast.Directive { return e.Transaction }

// NewInvalidCostError reports a posting whose cost specification is
// malformed or unsupported.
func NewInvalidCostError(txn *ast.Transaction, account ast.Account, postingIndex int, costSpec string, underlying error) *InvalidCostError {
	return &InvalidCostError{
		Transaction:  txn,
		Account:      account,
		PostingIndex: postingIndex,
		CostSpec:     costSpec,
		Underlying:   underlying,
	}
}

// InvalidPriceError is returned when a posting's price annotation fails to
// parse.
type InvalidPriceError struct {
	Transaction  *ast.Transaction
	Account      ast.Account
	PostingIndex int
	PriceSpec    string
	Underlying   error
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("%s: Invalid price specification (Posting #%d: %s): %s: %v",
		e.Transaction.Date.Format("2006-01-02"), e.PostingIndex+1, e.Account, e.PriceSpec, e.Underlying)
}

func (e *InvalidPriceError) GetPosition() ast.Position   { return e.Transaction.Position() }
func (e *InvalidPriceError) GetDirective() ast.Directive { return e.Transaction }

// NewInvalidPriceError reports a posting whose price annotation is
// malformed.
func NewInvalidPriceError(txn *ast.Transaction, account ast.Account, postingIndex int, priceSpec string, underlying error) *InvalidPriceError {
	return &InvalidPriceError{
		Transaction:  txn,
		Account:      account,
		PostingIndex: postingIndex,
		PriceSpec:    priceSpec,
		Underlying:   underlying,
	}
}

// InvalidMetadataError is returned when a transaction or posting's metadata
// entries are duplicated or carry an empty value.
type InvalidMetadataError struct {
	Transaction *ast.Transaction
	Account     ast.Account
	Key         string
	Value       *ast.MetadataValue
	Reason      string
}

func (e *InvalidMetadataError) Error() string {
	location := fmt.Sprintf("%s: Invalid metadata", e.Transaction.Date.Format("2006-01-02"))
	if e.Account != "" {
		location = fmt.Sprintf("%s (account %s)", location, e.Account)
	}
	return fmt.Sprintf("%s: key=%q, value=%v: %s", location, e.Key, e.Value, e.Reason)
}

func (e *InvalidMetadataError) GetPosition() ast.Position   { return e.Transaction.Position() }
func (e *InvalidMetadataError) GetDirective() ast.Directive { return e.Transaction }

// NewInvalidMetadataError reports a duplicated metadata key or empty value,
// scoped to a transaction (account == "") or one of its postings.
func NewInvalidMetadataError(txn *ast.Transaction, account ast.Account, key string, value *ast.MetadataValue, reason string) *InvalidMetadataError {
	return &InvalidMetadataError{
		Transaction: txn,
		Account:     account,
		Key:         key,
		Value:       value,
		Reason:      reason,
	}
}

// BalanceMismatchError is returned when a balance assertion fails.
type BalanceMismatchError struct {
	Directive *ast.Balance
	Date      *ast.Date
	Account   ast.Account
	Expected  string
	Actual    string
	Currency  string
}

func (e *BalanceMismatchError) Error() string {
	return fmt.Sprintf("%s: Balance mismatch for %s:\n  Expected: %s %s\n  Actual:   %s %s",
		e.Date.Format("2006-01-02"), e.Account,
		e.Expected, e.Currency,
		e.Actual, e.Currency)
}

func (e *BalanceMismatchError) GetPosition() ast.Position   { return e.Directive.Position() }
func (e *BalanceMismatchError) GetDirective() ast.Directive { return e.Directive }

// NewBalanceMismatchError reports a balance assertion whose actual inventory
// amount differs from the asserted amount by more than tolerance.
func NewBalanceMismatchError(balance *ast.Balance, expected, actual, currency string) *BalanceMismatchError {
	return &BalanceMismatchError{
		Directive: balance,
		Date:      balance.Date,
		Account:   balance.Account,
		Expected:  expected,
		Actual:    actual,
		Currency:  currency,
	}
}

// InsufficientInventoryError is returned when a reducing posting asks for
// more units of a lot than the account's inventory holds. Raised by the
// Strict and Ordered (FIFO/LIFO/HIFO) booking methods when a match fails to
// fully cover the requested reduction.
type InsufficientInventoryError struct {
	Transaction *ast.Transaction
	Account     ast.Account
	Payee       string
	Details     error
}

// NewInsufficientInventoryError reports a lot reduction that the account's
// inventory cannot satisfy.
func NewInsufficientInventoryError(txn *ast.Transaction, account ast.Account, details error) *InsufficientInventoryError {
	return &InsufficientInventoryError{
		Transaction: txn,
		Account:     account,
		Payee:       txn.Payee.Value,
		Details:     details,
	}
}

func (e *InsufficientInventoryError) Error() string {
	location := e.Transaction.Date.Format("2006-01-02")
	if pos := e.Transaction.Position(); pos.Filename != "" {
		location = fmt.Sprintf("%s:%d", pos.Filename, pos.Line)
	}
	return fmt.Sprintf("%s: Insufficient inventory in %s: %v", location, e.Account, e.Details)
}

func (e *InsufficientInventoryError) GetPosition() ast.Position   { return e.Transaction.Position() }
func (e *InsufficientInventoryError) GetDirective() ast.Directive { return e.Transaction }
func (e *InsufficientInventoryError) GetAccount() ast.Account     { return e.Account }
func (e *InsufficientInventoryError) GetDate() *ast.Date          { return e.Transaction.Date }

// CurrencyConstraintError is returned when a posting uses a currency that
// isn't among the constraint currencies declared on the account's open
// directive.
type CurrencyConstraintError struct {
	Transaction       *ast.Transaction
	Account           ast.Account
	Payee             string
	Currency          string
	AllowedCurrencies []string
}

// NewCurrencyConstraintError reports a posting currency that violates an
// account's open-directive constraint currencies.
func NewCurrencyConstraintError(txn *ast.Transaction, account ast.Account, currency string, allowed []string) *CurrencyConstraintError {
	return &CurrencyConstraintError{
		Transaction:       txn,
		Account:           account,
		Payee:             txn.Payee.Value,
		Currency:          currency,
		AllowedCurrencies: allowed,
	}
}

func (e *CurrencyConstraintError) Error() string {
	location := e.Transaction.Date.Format("2006-01-02")
	if pos := e.Transaction.Position(); pos.Filename != "" {
		location = fmt.Sprintf("%s:%d", pos.Filename, pos.Line)
	}
	return fmt.Sprintf("%s: Currency %s not allowed in %s, expected one of %v",
		location, e.Currency, e.Account, e.AllowedCurrencies)
}

func (e *CurrencyConstraintError) GetPosition() ast.Position   { return e.Transaction.Position() }
func (e *CurrencyConstraintError) GetDirective() ast.Directive { return e.Transaction }
func (e *CurrencyConstraintError) GetAccount() ast.Account     { return e.Account }
func (e *CurrencyConstraintError) GetDate() *ast.Date          { return e.Transaction.Date }

// The error kinds below correspond one-to-one with BookingErrorKind in the
// original implementation's src/booking/errors.rs: currency resolution and
// grouping, lot-matching failures, and interpolation failures. They carry
// just enough context to be wrapped by InsufficientInventoryError (position
// and payee come from the transaction at the call site) while still being
// distinguishable by type via errors.As.

// UnresolvedUnitsCurrencyError reports a posting whose units currency could
// not be determined by currency grouping.
type UnresolvedUnitsCurrencyError struct{ Commodity string }

func (e *UnresolvedUnitsCurrencyError) Error() string { return "unresolved units currency" }

// UnresolvedCostCurrencyError reports a cost spec whose currency could not
// be determined by currency grouping.
type UnresolvedCostCurrencyError struct{ Commodity string }

func (e *UnresolvedCostCurrencyError) Error() string { return "unresolved cost currency" }

// UnresolvedPriceCurrencyError reports a price annotation whose currency
// could not be determined by currency grouping.
type UnresolvedPriceCurrencyError struct{ Commodity string }

func (e *UnresolvedPriceCurrencyError) Error() string { return "unresolved price currency" }

// MultipleAutoPostingsError reports a transaction with more than one
// posting missing both an amount and a currency.
type MultipleAutoPostingsError struct{}

func (e *MultipleAutoPostingsError) Error() string { return "there can be at most one auto posting" }

// InsufficientLotsError reports a reducing posting whose booking method
// found matching lots but not enough units to satisfy the reduction.
type InsufficientLotsError struct {
	Commodity string
	Needed    string
	Available string
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("not enough lots in inventory to reduce position: need %s %s, have %s",
		e.Needed, e.Commodity, e.Available)
}

// NoMatchesForReductionError reports a reducing posting for which no lots
// in inventory match the requested commodity at all.
type NoMatchesForReductionError struct{ Commodity string }

func (e *NoMatchesForReductionError) Error() string {
	return fmt.Sprintf("no matching lots in inventory to reduce position in %s", e.Commodity)
}

// UnsupportedAverageBookingError reports an attempt to reduce a position
// held under the AVERAGE booking method, which this implementation never
// attempts to match (grounded on methods.rs's resolve_matches, which
// returns this error unconditionally for Booking::Average).
type UnsupportedAverageBookingError struct{ Commodity string }

func (e *UnsupportedAverageBookingError) Error() string {
	return "the AVERAGE booking method is not supported"
}

// AmbiguousMatchesError reports a STRICT reduction against more than one
// candidate lot whose amounts don't sum exactly to the requested reduction.
type AmbiguousMatchesError struct{ Commodity string }

func (e *AmbiguousMatchesError) Error() string { return "ambiguous matches" }

// TooManyMissingNumbersError reports a transaction with more than one
// posting missing a number across its amount and cost.
type TooManyMissingNumbersError struct{}

func (e *TooManyMissingNumbersError) Error() string {
	return "too many missing numbers in transaction"
}

// MissingAmountNumberError reports a posting whose amount is missing a
// number and that the interpolator could not fill in.
type MissingAmountNumberError struct{ Account ast.Account }

func (e *MissingAmountNumberError) Error() string { return "amount is missing a number" }

// MissingCostNumberError reports a posting whose cost is missing a number
// and that the interpolator could not fill in.
type MissingCostNumberError struct{ Account ast.Account }

func (e *MissingCostNumberError) Error() string { return "cost is missing a number" }

// UnsupportedTotalCostError reports a posting using the legacy total-cost
// form ({{...}}), which this implementation refuses rather than silently
// dividing down to a per-unit figure.
type UnsupportedTotalCostError struct{ Commodity string }

func (e *UnsupportedTotalCostError) Error() string {
	return fmt.Sprintf("total cost {{...}} is not supported for %s, use per-unit cost {...}", e.Commodity)
}
