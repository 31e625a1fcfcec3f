package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wnt/walletpnl/internal/models"
	"github.com/wnt/walletpnl/internal/solana"
)

const (
	testWallet      = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	otherSigner     = "Other11111111111111111111111111111111111111"
	testWalletWSOL  = "WsoLAccount1111111111111111111111111111111"
	testPoolWSOL    = "PoolWsoLVault11111111111111111111111111111"
	testPoolToken   = "PoolTokenVault1111111111111111111111111111"
	testWalletToken = "WalletTokenAcct11111111111111111111111111"
	testPool        = "PoolAuthority1111111111111111111111111111"
	testMint        = "BonkMint111111111111111111111111111111111"
)

// fakeChain serves token accounts, signature pages and transactions from memory
type fakeChain struct {
	mu         sync.Mutex
	owned      []string
	ownedErr   error
	signatures map[string][]solana.SignatureInfo // newest first
	sigErr     map[string]error
	txs        map[string]*solana.Transaction
	txErr      map[string]error
	pages      map[string]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		signatures: make(map[string][]solana.SignatureInfo),
		sigErr:     make(map[string]error),
		txs:        make(map[string]*solana.Transaction),
		txErr:      make(map[string]error),
		pages:      make(map[string]int),
	}
}

// addAccount registers an owned account whose history is txs, oldest first
func (f *fakeChain) addAccount(account string, txs ...*solana.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.owned = append(f.owned, account)
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		sig := tx.Signature()
		f.signatures[account] = append(f.signatures[account], solana.SignatureInfo{
			Signature: sig,
			BlockTime: tx.BlockTime,
			Err:       tx.Meta.Err,
		})
		f.txs[sig] = tx
	}
}

func (f *fakeChain) GetTokenAccountsByOwner(_ context.Context, owner string) ([]solana.KeyedTokenAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ownedErr != nil {
		return nil, f.ownedErr
	}
	accounts := make([]solana.KeyedTokenAccount, 0, len(f.owned))
	for _, addr := range f.owned {
		var account solana.KeyedTokenAccount
		account.Pubkey = addr
		account.Account.Data.Parsed.Info.Owner = owner
		account.Account.Data.Parsed.Info.Mint = testMint
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (f *fakeChain) GetSignaturesForAddress(_ context.Context, address, before string, limit int) ([]solana.SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pages[address]++
	if err := f.sigErr[address]; err != nil {
		return nil, err
	}

	all := f.signatures[address]
	start := 0
	if before != "" {
		for i, sig := range all {
			if sig.Signature == before {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]solana.SignatureInfo(nil), all[start:end]...), nil
}

func (f *fakeChain) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.txErr[signature]; err != nil {
		return nil, err
	}
	tx, ok := f.txs[signature]
	if !ok {
		return nil, nil
	}
	// hand out a copy so callers cannot mutate the fixture
	clone := *tx
	return &clone, nil
}

// fakeStore keeps the registry and rows in memory with the same uniqueness rules as postgres
type fakeStore struct {
	mu        sync.Mutex
	wallets   map[string]*models.Wallet
	registry  map[uint]map[string]models.TokenAccount
	rows      map[string]models.PnLInfo
	commitErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		wallets:  make(map[string]*models.Wallet),
		registry: make(map[uint]map[string]models.TokenAccount),
		rows:     make(map[string]models.PnLInfo),
	}
}

func (s *fakeStore) GetOrCreateWallet(_ context.Context, address string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.wallets[address]; ok {
		return w, nil
	}
	w := &models.Wallet{Address: address}
	w.ID = uint(len(s.wallets) + 1)
	s.wallets[address] = w
	return w, nil
}

func (s *fakeStore) TokenAccountAddresses(_ context.Context, walletID uint) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []string
	for addr := range s.registry[walletID] {
		out = append(out, addr)
	}
	return out, nil
}

func (s *fakeStore) register(account models.TokenAccount) {
	if s.registry[account.WalletID] == nil {
		s.registry[account.WalletID] = make(map[string]models.TokenAccount)
	}
	if _, ok := s.registry[account.WalletID][account.AccountAddress]; !ok {
		s.registry[account.WalletID][account.AccountAddress] = account
	}
}

func (s *fakeStore) RegisterAccount(_ context.Context, account models.TokenAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.register(account)
	return nil
}

func (s *fakeStore) CommitAccount(_ context.Context, row *models.PnLInfo, account models.TokenAccount) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitErr != nil {
		return false, s.commitErr
	}

	inserted := true
	for _, existing := range s.rows {
		if existing.WalletID == row.WalletID && existing.LastTrade.Equal(row.LastTrade) {
			inserted = false
		}
	}
	if _, ok := s.rows[row.TokenAccount]; ok {
		inserted = false
	}
	if inserted {
		s.rows[row.TokenAccount] = *row
	}
	s.register(account)
	return inserted, nil
}

func (s *fakeStore) MarkRun(_ context.Context, walletID uint, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.ID == walletID {
			w.LastRunAt = &at
		}
	}
	return nil
}

func (s *fakeStore) row(account string) (models.PnLInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[account]
	return row, ok
}

func (s *fakeStore) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeLookup struct {
	found bool
	err   error
}

func (f fakeLookup) PairCreatedAt(_ context.Context, _ string) (time.Time, bool, error) {
	return time.Unix(1_600_000_000, 0).UTC(), f.found, f.err
}

var errBoom = errors.New("boom")

func transferIx(typ, source, destination, authority, amount string) solana.ParsedInstruction {
	info := solana.InstructionInfo{
		Type: typ,
		Info: solana.TransferInfo{Source: source, Destination: destination, Authority: authority, Amount: amount},
	}
	raw, err := json.Marshal(info)
	if err != nil {
		panic(err)
	}
	return solana.ParsedInstruction{Program: "spl-token", ProgramID: solana.TokenProgramID, Parsed: raw}
}

func swapTx(sig string, blockTime int64, signer string, legs ...solana.ParsedInstruction) *solana.Transaction {
	balances := []solana.TokenBalance{
		{AccountIndex: 1, Mint: solana.WrappedSOLMint, Owner: testWallet, UiTokenAmount: solana.UiTokenAmount{Decimals: 9}},
		{AccountIndex: 2, Mint: solana.WrappedSOLMint, Owner: testPool, UiTokenAmount: solana.UiTokenAmount{Decimals: 9}},
		{AccountIndex: 3, Mint: testMint, Owner: testPool, UiTokenAmount: solana.UiTokenAmount{Decimals: 6}},
		{AccountIndex: 4, Mint: testMint, Owner: testWallet, UiTokenAmount: solana.UiTokenAmount{Decimals: 6}},
	}
	return &solana.Transaction{
		BlockTime: &blockTime,
		Meta: &solana.TransactionMeta{
			Fee:               5000,
			InnerInstructions: []solana.InnerInstruction{{Index: 0, Instructions: legs}},
			PreTokenBalances:  balances,
			PostTokenBalances: balances,
		},
		Transaction: solana.ParsedTransaction{
			Signatures: []string{sig},
			Message: solana.ParsedMessage{AccountKeys: []solana.AccountKey{
				{Pubkey: signer, Signer: true},
				{Pubkey: testWalletWSOL},
				{Pubkey: testPoolWSOL},
				{Pubkey: testPoolToken},
				{Pubkey: testWalletToken},
			}},
		},
	}
}

// buyTx spends lamports of SOL for tokens in base units
func buyTx(sig string, blockTime int64, lamports, tokens string) *solana.Transaction {
	return swapTx(sig, blockTime, testWallet,
		transferIx("transfer", testWalletWSOL, testPoolWSOL, testWallet, lamports),
		transferIx("transfer", testPoolToken, testWalletToken, testPool, tokens),
	)
}

// sellTx sells tokens in base units for lamports of SOL
func sellTx(sig string, blockTime int64, tokens, lamports string) *solana.Transaction {
	return swapTx(sig, blockTime, testWallet,
		transferIx("transfer", testWalletToken, testPoolToken, testWallet, tokens),
		transferIx("transfer", testPoolWSOL, testWalletWSOL, testPool, lamports),
	)
}

func sigName(account string, i int) string {
	return fmt.Sprintf("%s-sig-%d", account, i)
}
