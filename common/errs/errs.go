package errs

// ErrorKind identifies a class of engine error. Kinds are comparable
// sentinels: wrap them with cockroachdb/errors and test with errors.Is.
type ErrorKind string

const (
	// Validation is malformed or out-of-range input. Rejected before any
	// persistence happens.
	Validation = ErrorKind("validation error")

	// Conflict is a retryable collision: lock contention or not enough
	// remaining inventory. Never causes partial mutation.
	Conflict = ErrorKind("conflict")

	// NotFound is returned when a requested record does not exist.
	NotFound = ErrorKind("not found")

	// Immutable is an illegal mutation of a field frozen after inventory
	// has been consumed.
	Immutable = ErrorKind("immutable field")

	// State is an operation invalid for the record's current status.
	State = ErrorKind("invalid state")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Detail sentinels. Each wraps its kind so callers can match either the
// specific failure or the whole class.
var (
	ErrMissingFixedTerms   = Detail(Validation, "fixed terms required for non-negotiable consignment")
	ErrInvertedDealBounds  = Detail(Validation, "min deal amount exceeds max deal amount")
	ErrTotalBelowMinDeal   = Detail(Validation, "total amount below min deal amount")
	ErrInvertedDiscount    = Detail(Validation, "min discount exceeds max discount")
	ErrInvertedLockup      = Detail(Validation, "min lockup exceeds max lockup")
	ErrAmountOutOfRange    = Detail(Validation, "amount outside deal size bounds")
	ErrLockHeld            = Detail(Conflict, "consignment is locked by another operation")
	ErrInsufficientAmount  = Detail(Conflict, "insufficient remaining amount")
	ErrAlreadyWithdrawn    = Detail(State, "consignment already withdrawn")
	ErrConsignmentInactive = Detail(State, "consignment is not active")
)

// kindError pairs a detail message with its kind while keeping both
// reachable through errors.Is/errors.Unwrap.
type kindError struct {
	kind ErrorKind
	msg  string
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.kind
}

// Detail builds a detail sentinel belonging to the given kind.
func Detail(kind ErrorKind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
