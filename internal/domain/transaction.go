package domain

// Transaction status values stored in the transaction log.
const (
	TxStatusOK  = "ok"
	TxStatusErr = "err"
)

// TransactionRecord is one executed transaction as kept in the transaction log.
// Failed transactions are recorded too; their state changes were discarded.
type TransactionRecord struct {
	Signature    string   // base58 of the first signature
	Slot         uint64   // ledger slot assigned at execution
	BlockTime    int64    // ledger unix seconds
	Signers      []string // base58 keys
	Programs     []string // top-level program ids, in instruction order
	Status       string   // TxStatusOK or TxStatusErr
	Err          string   // empty on success
	ErrorName    string   // stable error name, empty on success
	ErrorIndex   *uint8   // failing instruction (nullable)
	ErrorCode    *uint32  // custom program error code (nullable)
	Logs         []string
	WrittenCount int   // accounts written on commit
	CreatedAt    int64 // record creation timestamp (ms)
}
