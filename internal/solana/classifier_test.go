package solana

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWallet      = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testWalletWSOL  = "WsoLAccount1111111111111111111111111111111"
	testPoolWSOL    = "PoolWsoLVault11111111111111111111111111111"
	testPoolToken   = "PoolTokenVault1111111111111111111111111111"
	testWalletToken = "WalletTokenAcct11111111111111111111111111"
	testPool        = "PoolAuthority1111111111111111111111111111"
	testMint        = "BonkMint111111111111111111111111111111111"
)

func transferIx(t *testing.T, typ, source, destination, authority, amount string) ParsedInstruction {
	t.Helper()
	info := InstructionInfo{
		Type: typ,
		Info: TransferInfo{Source: source, Destination: destination, Authority: authority},
	}
	if typ == "transferChecked" {
		info.Info.TokenAmount = &UiTokenAmount{Amount: amount}
	} else {
		info.Info.Amount = amount
	}
	raw, err := json.Marshal(info)
	require.NoError(t, err)
	return ParsedInstruction{Program: "spl-token", ProgramID: TokenProgramID, Parsed: raw}
}

func swapTx(t *testing.T, blockTime int64, legs ...ParsedInstruction) *Transaction {
	t.Helper()
	balances := []TokenBalance{
		{AccountIndex: 1, Mint: WrappedSOLMint, Owner: testWallet, UiTokenAmount: UiTokenAmount{Decimals: 9}},
		{AccountIndex: 2, Mint: WrappedSOLMint, Owner: testPool, UiTokenAmount: UiTokenAmount{Decimals: 9}},
		{AccountIndex: 3, Mint: testMint, Owner: testPool, UiTokenAmount: UiTokenAmount{Decimals: 6}},
		{AccountIndex: 4, Mint: testMint, Owner: testWallet, UiTokenAmount: UiTokenAmount{Decimals: 6}},
	}
	return &Transaction{
		BlockTime: &blockTime,
		Meta: &TransactionMeta{
			Fee:               5000,
			InnerInstructions: []InnerInstruction{{Index: 0, Instructions: legs}},
			PreTokenBalances:  balances,
			PostTokenBalances: balances,
		},
		Transaction: ParsedTransaction{
			Signatures: []string{"sig"},
			Message: ParsedMessage{AccountKeys: []AccountKey{
				{Pubkey: testWallet, Signer: true},
				{Pubkey: testWalletWSOL},
				{Pubkey: testPoolWSOL},
				{Pubkey: testPoolToken},
				{Pubkey: testWalletToken},
			}},
		},
	}
}

func buyTx(t *testing.T, blockTime int64, lamports, tokens string) *Transaction {
	return swapTx(t, blockTime,
		transferIx(t, "transfer", testWalletWSOL, testPoolWSOL, testWallet, lamports),
		transferIx(t, "transfer", testPoolToken, testWalletToken, testPool, tokens),
	)
}

func sellTx(t *testing.T, blockTime int64, tokens, lamports string) *Transaction {
	return swapTx(t, blockTime,
		transferIx(t, "transfer", testWalletToken, testPoolToken, testWallet, tokens),
		transferIx(t, "transfer", testPoolWSOL, testWalletWSOL, testPool, lamports),
	)
}

func TestClassifyBuy(t *testing.T) {
	c := Classify(testWallet, buyTx(t, 1700000000, "1000000000", "1000000000"))

	require.Equal(t, Buy, c.Side, c.Reason)
	assert.Equal(t, testMint, c.Mint)
	assert.Equal(t, int32(6), c.Decimals)
	assert.True(t, decimal.NewFromInt(1000).Equal(c.TokenAmount), c.TokenAmount.String())
	assert.True(t, decimal.NewFromInt(1).Equal(c.SOLAmount), c.SOLAmount.String())
	assert.Equal(t, uint64(5000), c.Fee)
	assert.Equal(t, int64(1700000000), c.BlockTime.Unix())
	assert.Equal(t, "sig", c.Signature)
}

func TestClassifySell(t *testing.T) {
	c := Classify(testWallet, sellTx(t, 1700000100, "1000000000", "1200000000"))

	require.Equal(t, Sell, c.Side, c.Reason)
	assert.True(t, decimal.NewFromInt(1000).Equal(c.TokenAmount))
	assert.True(t, decimal.RequireFromString("1.2").Equal(c.SOLAmount))
}

func TestClassifyTransferChecked(t *testing.T) {
	tx := swapTx(t, 1700000000,
		transferIx(t, "transferChecked", testWalletWSOL, testPoolWSOL, testWallet, "500000000"),
		transferIx(t, "transferChecked", testPoolToken, testWalletToken, testPool, "2500000"),
	)

	c := Classify(testWallet, tx)
	require.Equal(t, Buy, c.Side, c.Reason)
	assert.True(t, decimal.RequireFromString("2.5").Equal(c.TokenAmount))
	assert.True(t, decimal.RequireFromString("0.5").Equal(c.SOLAmount))
}

func TestClassifyIsDeterministic(t *testing.T) {
	tx := buyTx(t, 1700000000, "1000000000", "1000000000")
	first := Classify(testWallet, tx)
	for i := 0; i < 5; i++ {
		again := Classify(testWallet, tx)
		assert.Equal(t, first.Side, again.Side)
		assert.True(t, first.TokenAmount.Equal(again.TokenAmount))
	}
}

func TestClassifyUnclassifiable(t *testing.T) {
	tests := []struct {
		name   string
		tx     func(t *testing.T) *Transaction
		reason string
	}{
		{
			name: "single leg",
			tx: func(t *testing.T) *Transaction {
				return swapTx(t, 1, transferIx(t, "transfer", testWalletWSOL, testPoolWSOL, testWallet, "1"))
			},
			reason: "fewer than two transfer legs",
		},
		{
			name: "multi hop",
			tx: func(t *testing.T) *Transaction {
				return swapTx(t, 1,
					transferIx(t, "transfer", testWalletWSOL, testPoolWSOL, testWallet, "1"),
					transferIx(t, "transfer", testPoolToken, testWalletToken, testPool, "1"),
					transferIx(t, "transfer", testPoolToken, testWalletToken, testPool, "1"),
				)
			},
			reason: "more than two transfer legs",
		},
		{
			name: "missing destination",
			tx: func(t *testing.T) *Transaction {
				return swapTx(t, 1,
					transferIx(t, "transfer", testWalletWSOL, "", testWallet, "1"),
					transferIx(t, "transfer", testPoolToken, testWalletToken, testPool, "1"),
				)
			},
			reason: "fewer than two transfer legs",
		},
		{
			name: "no wallet token balance",
			tx: func(t *testing.T) *Transaction {
				tx := buyTx(t, 1, "1", "1")
				tx.Meta.PostTokenBalances = tx.Meta.PostTokenBalances[:3]
				return tx
			},
			reason: "no counterpart token balance",
		},
		{
			name: "unknown second source",
			tx: func(t *testing.T) *Transaction {
				return swapTx(t, 1,
					transferIx(t, "transfer", testWalletWSOL, testPoolWSOL, testWallet, "1"),
					transferIx(t, "transfer", "Unknown111111111111111111111111111111111", testWalletToken, testPool, "1"),
				)
			},
			reason: "unknown mint for second leg source",
		},
		{
			name: "bad amount",
			tx: func(t *testing.T) *Transaction {
				return buyTx(t, 1, "not-a-number", "1")
			},
			reason: "invalid amount",
		},
		{
			name: "missing block time",
			tx: func(t *testing.T) *Transaction {
				tx := buyTx(t, 1, "1", "1")
				tx.BlockTime = nil
				return tx
			},
			reason: "missing block time",
		},
		{
			name: "missing meta",
			tx: func(t *testing.T) *Transaction {
				return &Transaction{}
			},
			reason: "missing transaction meta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(testWallet, tt.tx(t))
			assert.Equal(t, Unclassifiable, c.Side)
			assert.Contains(t, c.Reason, tt.reason)
		})
	}
}

func TestTransferLegsIgnoresOtherPrograms(t *testing.T) {
	tx := buyTx(t, 1, "1", "1")
	tx.Meta.InnerInstructions[0].Instructions = append(tx.Meta.InnerInstructions[0].Instructions,
		ParsedInstruction{ProgramID: "11111111111111111111111111111111", Parsed: json.RawMessage(`{"type":"transfer","info":{"destination":"x"}}`)},
		ParsedInstruction{ProgramID: TokenProgramID, Parsed: json.RawMessage(`{"type":"closeAccount","info":{"account":"a","destination":"b","owner":"c"}}`)},
		ParsedInstruction{ProgramID: TokenProgramID, Parsed: json.RawMessage(`"unparsed"`)},
	)

	assert.Len(t, TransferLegs(tx), 2)
}

func TestLamportsToSOL(t *testing.T) {
	assert.True(t, decimal.RequireFromString("0.000005").Equal(LamportsToSOL(5000)))
	assert.True(t, decimal.NewFromInt(3).Equal(LamportsToSOL(3_000_000_000)))
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(testWallet))
	assert.NoError(t, ValidateAddress(WrappedSOLMint))
	assert.Error(t, ValidateAddress("not-base58-0OIl"))
	assert.Error(t, ValidateAddress(""))
}

func TestSignatureInfoFailed(t *testing.T) {
	var ok, failed SignatureInfo
	require.NoError(t, json.Unmarshal([]byte(`{"signature":"a","err":null}`), &ok))
	require.NoError(t, json.Unmarshal([]byte(`{"signature":"b","err":{"InstructionError":[0,"Custom"]}}`), &failed))
	assert.False(t, ok.Failed())
	assert.True(t, failed.Failed())
}
