package domain

// Account is a key-addressed unit of ledger state.
// Owner is the program allowed to modify Data. Version increases with every
// committed write and is zero for an account that has never been stored.
type Account struct {
	Key     Pubkey
	Owner   Pubkey
	Data    []byte
	Version uint64
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Data != nil {
		c.Data = make([]byte, len(a.Data))
		copy(c.Data, a.Data)
	}
	return &c
}

// AccountWrite is one staged change produced by a transaction.
// ExpectedVersion is the version the writer observed; zero means the account
// must not exist yet.
type AccountWrite struct {
	Account         *Account
	ExpectedVersion uint64
}
