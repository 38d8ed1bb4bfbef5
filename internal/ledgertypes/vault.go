package ledgertypes

// VaultDeposit is an L1 deposit event observed by the vault watcher. Unique
// on L1TxHash so ingestion is idempotent.
type VaultDeposit struct {
	L1TxHash  string
	Recipient string
	Amount    uint64
	L1Height  uint64
	Processed bool
}

// WithdrawalStatus tracks a burn from ledger-side intent through L1 finality.
type WithdrawalStatus uint8

const (
	WithdrawalPending WithdrawalStatus = iota
	WithdrawalProofReady
	WithdrawalFinalised
)

func (s WithdrawalStatus) String() string {
	switch s {
	case WithdrawalProofReady:
		return "proof_ready"
	case WithdrawalFinalised:
		return "finalised"
	default:
		return "pending"
	}
}

// VaultWithdrawal is the ledger-side record of a burn awaiting L1 finality.
type VaultWithdrawal struct {
	BurnTxID        Hash
	RecipientL1     string
	Amount          uint64
	StateRootAtBurn Hash
	ProofBundle     []byte
	L1TxHash        string
	Status          WithdrawalStatus
}
