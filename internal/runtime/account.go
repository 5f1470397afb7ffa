package runtime

import (
	"bytes"

	"fit-token/internal/domain"
)

// SystemProgramID owns every account that does not exist yet.
var SystemProgramID = domain.Pubkey{}

// stagedAccount is the transaction-local working copy of one account.
// Every AccountInfo for the same key, at any call depth, shares it.
type stagedAccount struct {
	key     domain.Pubkey
	owner   domain.Pubkey
	data    []byte
	exists  bool
	version uint64 // version loaded from the store, zero if absent

	origOwner  domain.Pubkey
	origData   []byte
	origExists bool
}

func newStagedAccount(key domain.Pubkey, acct *domain.Account) *stagedAccount {
	s := &stagedAccount{key: key, owner: SystemProgramID}
	if acct != nil {
		s.owner = acct.Owner
		s.data = append([]byte(nil), acct.Data...)
		s.exists = true
		s.version = acct.Version
	}
	s.origOwner = s.owner
	s.origData = append([]byte(nil), s.data...)
	s.origExists = s.exists
	return s
}

func (s *stagedAccount) dirty() bool {
	return s.exists != s.origExists || s.owner != s.origOwner || !bytes.Equal(s.data, s.origData)
}

func (s *stagedAccount) write() domain.AccountWrite {
	return domain.AccountWrite{
		Account: &domain.Account{
			Key:   s.key,
			Owner: s.owner,
			Data:  append([]byte(nil), s.data...),
		},
		ExpectedVersion: s.version,
	}
}

// AccountInfo is a program's view of one instruction account: the shared
// working copy plus the privileges granted for this invocation.
type AccountInfo struct {
	Key        domain.Pubkey
	IsSigner   bool
	IsWritable bool

	acct *stagedAccount
}

// Owner returns the program that owns the account.
func (a *AccountInfo) Owner() domain.Pubkey {
	return a.acct.owner
}

// Exists reports whether the account has been allocated.
func (a *AccountInfo) Exists() bool {
	return a.acct.exists
}

// Data returns the account data. Programs modify it in place; the runtime
// checks after the invocation that the change was permitted.
func (a *AccountInfo) Data() []byte {
	return a.acct.data
}

// Allocate creates the account with zeroed data of the given size and hands
// it to owner. Only the system program may call it successfully, because
// the post-invocation check attributes the change to the running program.
func (a *AccountInfo) Allocate(space int, owner domain.Pubkey) error {
	if a.acct.exists || len(a.acct.data) != 0 || a.acct.owner != SystemProgramID {
		return ErrAccountAlreadyInUse
	}
	a.acct.data = make([]byte, space)
	a.acct.owner = owner
	a.acct.exists = true
	return nil
}

// snapshot is the state of one account captured before an invocation.
type snapshot struct {
	owner  domain.Pubkey
	data   []byte
	exists bool
}

func takeSnapshot(s *stagedAccount) snapshot {
	return snapshot{
		owner:  s.owner,
		data:   append([]byte(nil), s.data...),
		exists: s.exists,
	}
}

// verifyChange enforces ownership and writability rules for everything that
// happened to an account between its snapshot and now.
func verifyChange(program domain.Pubkey, writable bool, pre snapshot, post *stagedAccount) error {
	dataChanged := !bytes.Equal(pre.data, post.data) || pre.exists != post.exists
	ownerChanged := pre.owner != post.owner

	if !dataChanged && !ownerChanged {
		return nil
	}
	if !writable {
		return ErrReadonlyDataModified
	}
	if pre.owner != program {
		if ownerChanged {
			return ErrModifiedProgramID
		}
		return ErrExternalAccountDataModified
	}
	// Owner may be reassigned only while the data is still blank.
	if ownerChanged && pre.exists && !isZeroed(pre.data) {
		return ErrModifiedProgramID
	}
	return nil
}

func isZeroed(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// NewAccountInfo builds a detached AccountInfo over a copy of acct, for
// running validation code outside a transaction. A nil acct is unallocated.
func NewAccountInfo(key domain.Pubkey, isSigner, isWritable bool, acct *domain.Account) *AccountInfo {
	return &AccountInfo{
		Key:        key,
		IsSigner:   isSigner,
		IsWritable: isWritable,
		acct:       newStagedAccount(key, acct),
	}
}
