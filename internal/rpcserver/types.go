package rpcserver

import (
	"strconv"
	"strings"

	"fit-token/internal/domain"
)

// Context carries the slot a response was read at.
type Context struct {
	Slot uint64 `json:"slot"`
}

// AccountValue is the getAccountInfo value.
type AccountValue struct {
	Lamports   uint64    `json:"lamports"`
	Owner      string    `json:"owner"`
	Data       [2]string `json:"data"` // [base64, "base64"]
	Executable bool      `json:"executable"`
	RentEpoch  uint64    `json:"rentEpoch"`
	Space      int       `json:"space"`
}

// TokenAmount is the value of getTokenAccountBalance and getTokenSupply.
type TokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// TokenInfoValue is the getTokenInfo value.
type TokenInfoValue struct {
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Authority string `json:"authority"`
}

// StakeInfoValue is the getStakeInfo value.
type StakeInfoValue struct {
	User      string `json:"user"`
	Amount    uint64 `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// KeyedAccount is one getProgramAccounts entry.
type KeyedAccount struct {
	Pubkey  string       `json:"pubkey"`
	Account AccountValue `json:"account"`
}

// TransactionValue is the getTransaction result.
type TransactionValue struct {
	Slot        uint64          `json:"slot"`
	BlockTime   int64           `json:"blockTime"`
	Meta        TransactionMeta `json:"meta"`
	Transaction TransactionBody `json:"transaction"`
}

// TransactionMeta describes the outcome of a transaction.
type TransactionMeta struct {
	Err         any            `json:"err"`
	Status      map[string]any `json:"status"`
	LogMessages []string       `json:"logMessages"`
}

// TransactionBody lists the signatures and keys of a transaction.
type TransactionBody struct {
	Signatures []string `json:"signatures"`
	Message    struct {
		AccountKeys []string `json:"accountKeys"`
	} `json:"message"`
}

// SendFailure is the error data of a failed sendTransaction.
type SendFailure struct {
	Signature string   `json:"signature"`
	Err       any      `json:"err"`
	Logs      []string `json:"logs"`
}

func accountValue(a *domain.Account) AccountValue {
	return AccountValue{
		Owner: a.Owner.String(),
		Data:  [2]string{encodeBase64(a.Data), "base64"},
		Space: len(a.Data),
	}
}

// transactionError renders a failure the way Solana clients expect:
// {"InstructionError":[index,{"Custom":code}]} for program errors,
// {"InstructionError":[index,"Name"]} for runtime errors and a bare name
// for errors outside an instruction.
func transactionError(name string, index *uint8, code *uint32) any {
	if name == "" && index == nil && code == nil {
		return nil
	}
	if index == nil {
		return name
	}
	var inner any = name
	if code != nil {
		inner = map[string]uint32{"Custom": *code}
	}
	return map[string][]any{"InstructionError": {*index, inner}}
}

func transactionValue(rec *domain.TransactionRecord) *TransactionValue {
	v := &TransactionValue{
		Slot:      rec.Slot,
		BlockTime: rec.BlockTime,
		Meta: TransactionMeta{
			Err:         transactionError(rec.ErrorName, rec.ErrorIndex, rec.ErrorCode),
			LogMessages: append([]string{}, rec.Logs...),
		},
	}
	if v.Meta.Err == nil {
		v.Meta.Status = map[string]any{"Ok": nil}
	} else {
		v.Meta.Status = map[string]any{"Err": v.Meta.Err}
	}
	v.Transaction.Signatures = []string{rec.Signature}
	v.Transaction.Message.AccountKeys = append(append([]string{}, rec.Signers...), rec.Programs...)
	return v
}

// formatAmount renders base units as a decimal string, trimming trailing zeros.
func formatAmount(amount uint64, decimals uint8) string {
	s := strconv.FormatUint(amount, 10)
	if decimals == 0 {
		return s
	}
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], strings.TrimRight(s[len(s)-d:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
