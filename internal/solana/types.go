package solana

import (
	"encoding/json"
	"time"
)

// SignatureInfo is one entry of getSignaturesForAddress
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      uint64      `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// Failed reports whether the transaction errored on-chain
func (s SignatureInfo) Failed() bool {
	return s.Err != nil
}

// Transaction is a getTransaction result with jsonParsed encoding
type Transaction struct {
	Slot        uint64            `json:"slot"`
	BlockTime   *int64            `json:"blockTime"`
	Meta        *TransactionMeta  `json:"meta"`
	Transaction ParsedTransaction `json:"transaction"`
}

// Signature returns the first signature of the transaction, if any
func (t *Transaction) Signature() string {
	if len(t.Transaction.Signatures) == 0 {
		return ""
	}
	return t.Transaction.Signatures[0]
}

// Signer returns the fee payer, which is always the first account key
func (t *Transaction) Signer() string {
	keys := t.Transaction.Message.AccountKeys
	if len(keys) == 0 {
		return ""
	}
	return keys[0].Pubkey
}

// Failed reports whether the transaction errored on-chain
func (t *Transaction) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// Time returns the block time, zero when unknown
func (t *Transaction) Time() time.Time {
	return UnixTimeToTime(t.BlockTime)
}

type ParsedTransaction struct {
	Signatures []string      `json:"signatures"`
	Message    ParsedMessage `json:"message"`
}

type ParsedMessage struct {
	AccountKeys  []AccountKey        `json:"accountKeys"`
	Instructions []ParsedInstruction `json:"instructions"`
}

type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
	Source   string `json:"source"`
}

type TransactionMeta struct {
	Err               interface{}        `json:"err"`
	Fee               uint64             `json:"fee"`
	InnerInstructions []InnerInstruction `json:"innerInstructions"`
	PreTokenBalances  []TokenBalance     `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance     `json:"postTokenBalances"`
}

type InnerInstruction struct {
	Index        int                 `json:"index"`
	Instructions []ParsedInstruction `json:"instructions"`
}

// ParsedInstruction keeps Parsed raw because the RPC returns either an object
// or a plain string for programs it cannot decode.
type ParsedInstruction struct {
	Program     string          `json:"program"`
	ProgramID   string          `json:"programId"`
	Parsed      json.RawMessage `json:"parsed"`
	StackHeight *int            `json:"stackHeight"`
}

// InstructionInfo is the decoded body of a token program instruction
type InstructionInfo struct {
	Type string       `json:"type"`
	Info TransferInfo `json:"info"`
}

// TransferInfo covers transfer and transferChecked
type TransferInfo struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Authority   string         `json:"authority"`
	Mint        string         `json:"mint"`
	Amount      string         `json:"amount"`
	TokenAmount *UiTokenAmount `json:"tokenAmount"`
}

// RawAmount returns the base-unit amount regardless of the transfer variant
func (i TransferInfo) RawAmount() string {
	if i.Amount != "" {
		return i.Amount
	}
	if i.TokenAmount != nil {
		return i.TokenAmount.Amount
	}
	return ""
}

type TokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	ProgramID     string        `json:"programId"`
	UiTokenAmount UiTokenAmount `json:"uiTokenAmount"`
}

type UiTokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       int32  `json:"decimals"`
	UiAmountString string `json:"uiAmountString"`
}

// TokenAccountsResult is the getTokenAccountsByOwner result
type TokenAccountsResult struct {
	Value []KeyedTokenAccount `json:"value"`
}

type KeyedTokenAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data struct {
			Parsed struct {
				Info struct {
					Mint  string `json:"mint"`
					Owner string `json:"owner"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}

// BalanceResult is the getBalance result
type BalanceResult struct {
	Value uint64 `json:"value"`
}

// UnixTimeToTime converts an optional Unix timestamp to a UTC time
func UnixTimeToTime(timestamp *int64) time.Time {
	if timestamp == nil {
		return time.Time{}
	}
	return time.Unix(*timestamp, 0).UTC()
}
