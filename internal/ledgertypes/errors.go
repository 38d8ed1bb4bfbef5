package ledgertypes

import "github.com/pkg/errors"

var errBadHashLength = errors.New("ledgertypes: hash must be 32 bytes")

// ValidationErrorCode enumerates the reasons apply_transaction can reject a
// transaction without mutating state.
type ValidationErrorCode int

const (
	ErrInvalidSignature ValidationErrorCode = iota
	ErrInputNotFound
	ErrInputAlreadySpent
	ErrInsufficientFunds
	ErrConservationViolation
	ErrMalformedTransaction
)

func (c ValidationErrorCode) String() string {
	switch c {
	case ErrInvalidSignature:
		return "InvalidSignature"
	case ErrInputNotFound:
		return "InputNotFound"
	case ErrInputAlreadySpent:
		return "InputAlreadySpent"
	case ErrInsufficientFunds:
		return "InsufficientFunds"
	case ErrConservationViolation:
		return "ConservationViolation"
	case ErrMalformedTransaction:
		return "MalformedTransaction"
	default:
		return "UnknownValidationError"
	}
}

// ValidationError is returned by Ledger.ApplyTransaction on any failure of
// validation steps 1-4; it never accompanies a state mutation.
type ValidationError struct {
	Code ValidationErrorCode
	Msg  string
}

func (e *ValidationError) Error() string {
	return e.Code.String() + ": " + e.Msg
}

// CodeString returns the enumerated sub-code so callers can branch without
// string matching after an errors.As.
func (e *ValidationError) CodeString() string {
	return e.Code.String()
}

// NewValidationError constructs a ValidationError.
func NewValidationError(code ValidationErrorCode, msg string) *ValidationError {
	return &ValidationError{Code: code, Msg: msg}
}

// StorageError wraps a transactional-storage failure. The whole apply that
// triggered it has been rolled back by the time this is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError for operation op.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// DAErrorKind distinguishes retryable from fatal DA submission failures.
type DAErrorKind int

const (
	DATransient DAErrorKind = iota
	DAPermanent
)

// DAError is returned by the DA client when a blob submission fails.
type DAError struct {
	Kind DAErrorKind
	Msg  string
	Err  error
}

func (e *DAError) Error() string {
	kind := "transient"
	if e.Kind == DAPermanent {
		kind = "permanent"
	}
	return "da: " + kind + ": " + e.Msg
}

func (e *DAError) Unwrap() error {
	return e.Err
}

// CodeString reports "transient" or "permanent".
func (e *DAError) CodeString() string {
	if e.Kind == DAPermanent {
		return "permanent"
	}
	return "transient"
}

// ProofError is returned by GenerateUTXOProof when the requested root has
// fallen outside the retained history window, or the historical leaf set
// cannot be reconstructed to match that root. A reference with no leaf at
// the root is not an error: it yields an exclusion proof.
type ProofError struct {
	Msg string
	Err error
}

func (e *ProofError) Error() string {
	return "proof: " + e.Msg
}

func (e *ProofError) Unwrap() error {
	return e.Err
}

// NewProofError constructs a ProofError.
func NewProofError(msg string, err error) *ProofError {
	return &ProofError{Msg: msg, Err: err}
}

// NewDAError constructs a DAError of the given kind.
func NewDAError(kind DAErrorKind, msg string, err error) *DAError {
	return &DAError{Kind: kind, Msg: msg, Err: err}
}

// BridgeError signals a bridge-handler condition that is a hard error (not
// the idempotent-duplicate non-error case, which returns nil).
type BridgeError struct {
	Msg string
}

func (e *BridgeError) Error() string {
	return "bridge: " + e.Msg
}

// NewBridgeError constructs a BridgeError.
func NewBridgeError(msg string) *BridgeError {
	return &BridgeError{Msg: msg}
}

// RecoveryErrorKind distinguishes the two ways replay can diverge from DA.
type RecoveryErrorKind int

const (
	RecoveryStateRootMismatch RecoveryErrorKind = iota
	RecoveryChainDiscontinuity
)

// RecoveryError halts the recovery procedure with a divergence report.
type RecoveryError struct {
	Kind   RecoveryErrorKind
	Height uint64
	Msg    string
}

func (e *RecoveryError) Error() string {
	kind := "StateRootMismatch"
	if e.Kind == RecoveryChainDiscontinuity {
		kind = "ChainDiscontinuity"
	}
	return "recovery: " + kind + " at height " + itoa(e.Height) + ": " + e.Msg
}

// NewRecoveryError constructs a RecoveryError.
func NewRecoveryError(kind RecoveryErrorKind, height uint64, msg string) *RecoveryError {
	return &RecoveryError{Kind: kind, Height: height, Msg: msg}
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
