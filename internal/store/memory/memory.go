// Package memory implements domain.LedgerStore entirely in process memory.
// It backs tests and the dev storage driver. Atomic sections are serialized
// under one mutex and applied to a staged snapshot that is swapped in only
// when the section returns nil, so a mid-operation failure leaves the
// previous state untouched. Per-record versions are maintained with the same
// compare-and-swap semantics as the postgres store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/brickfolio/brickfolio/internal/domain"
)

// Store is an in-memory LedgerStore.
type Store struct {
	mu sync.Mutex
	st *state
}

// state holds every table. Clone produces a deep enough copy that staged
// mutations never leak into the live state.
type state struct {
	wallets      map[string]domain.Wallet
	properties   map[string]domain.Property
	investments  map[string]domain.Investment
	transactions map[string]domain.Transaction
	txOrder      []string
	hashes       map[string]string // anchor hash -> transaction id
}

func newState() *state {
	return &state{
		wallets:      map[string]domain.Wallet{},
		properties:   map[string]domain.Property{},
		investments:  map[string]domain.Investment{},
		transactions: map[string]domain.Transaction{},
		hashes:       map[string]string{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.properties {
		c.properties[k] = v
	}
	for k, v := range s.investments {
		c.investments[k] = cloneInvestment(v)
	}
	for k, v := range s.transactions {
		c.transactions[k] = cloneTransaction(v)
	}
	c.txOrder = append([]string(nil), s.txOrder...)
	for k, v := range s.hashes {
		c.hashes[k] = v
	}
	return c
}

func cloneInvestment(inv domain.Investment) domain.Investment {
	inv.Dividends = append([]domain.Dividend(nil), inv.Dividends...)
	inv.SellOrders = append([]domain.SellOrder(nil), inv.SellOrders...)
	return inv
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	if tx.Metadata != nil {
		meta := make(map[string]string, len(tx.Metadata))
		for k, v := range tx.Metadata {
			meta[k] = v
		}
		tx.Metadata = meta
	}
	if tx.Related != nil {
		ref := *tx.Related
		tx.Related = &ref
	}
	return tx
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// Atomic runs fn against a staged snapshot under the store mutex and swaps
// the snapshot in only on success.
func (s *Store) Atomic(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(&view{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *Store) Wallets() domain.WalletStore           { return walletView{s} }
func (s *Store) Properties() domain.PropertyStore      { return propertyView{s} }
func (s *Store) Investments() domain.InvestmentStore   { return investmentView{s} }
func (s *Store) Transactions() domain.TransactionStore { return transactionView{s} }

// view exposes the staged state inside an Atomic section.
type view struct {
	st *state
}

func (v *view) Wallets() domain.WalletStore           { return (*walletTable)(v) }
func (v *view) Properties() domain.PropertyStore      { return (*propertyTable)(v) }
func (v *view) Investments() domain.InvestmentStore   { return (*investmentTable)(v) }
func (v *view) Transactions() domain.TransactionStore { return (*transactionTable)(v) }

// ---------------------------------------------------------------------------
// wallet table
// ---------------------------------------------------------------------------

type walletTable view

func (t *walletTable) Create(_ context.Context, w domain.Wallet) error {
	if _, ok := t.st.wallets[w.UserID]; ok {
		return fmt.Errorf("memory: wallet %s exists: %w", w.UserID, domain.ErrConflict)
	}
	w.Version = 1
	t.st.wallets[w.UserID] = w
	return nil
}

func (t *walletTable) Get(_ context.Context, userID string) (domain.Wallet, error) {
	w, ok := t.st.wallets[userID]
	if !ok {
		return domain.Wallet{}, domain.ErrNotFound
	}
	return w, nil
}

func (t *walletTable) Update(_ context.Context, w domain.Wallet) error {
	cur, ok := t.st.wallets[w.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != w.Version {
		return domain.ErrConflict
	}
	w.Version++
	t.st.wallets[w.UserID] = w
	return nil
}

// ---------------------------------------------------------------------------
// property table
// ---------------------------------------------------------------------------

type propertyTable view

func (t *propertyTable) Create(_ context.Context, p domain.Property) error {
	if _, ok := t.st.properties[p.ID]; ok {
		return fmt.Errorf("memory: property %s exists: %w", p.ID, domain.ErrConflict)
	}
	p.Version = 1
	t.st.properties[p.ID] = p
	return nil
}

func (t *propertyTable) Get(_ context.Context, id string) (domain.Property, error) {
	p, ok := t.st.properties[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}

func (t *propertyTable) Update(_ context.Context, p domain.Property) error {
	cur, ok := t.st.properties[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != p.Version {
		return domain.ErrConflict
	}
	p.Version++
	t.st.properties[p.ID] = p
	return nil
}

func (t *propertyTable) List(_ context.Context, opts domain.ListOpts) ([]domain.Property, error) {
	props := make([]domain.Property, 0, len(t.st.properties))
	for _, p := range t.st.properties {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i].CreatedAt.Before(props[j].CreatedAt) })
	return paginate(props, opts), nil
}

// ---------------------------------------------------------------------------
// investment table
// ---------------------------------------------------------------------------

type investmentTable view

func (t *investmentTable) Create(_ context.Context, inv domain.Investment) error {
	if _, ok := t.st.investments[inv.ID]; ok {
		return fmt.Errorf("memory: investment %s exists: %w", inv.ID, domain.ErrConflict)
	}
	inv.Version = 1
	t.st.investments[inv.ID] = cloneInvestment(inv)
	return nil
}

func (t *investmentTable) Get(_ context.Context, id string) (domain.Investment, error) {
	inv, ok := t.st.investments[id]
	if !ok {
		return domain.Investment{}, domain.ErrNotFound
	}
	return cloneInvestment(inv), nil
}

func (t *investmentTable) Update(_ context.Context, inv domain.Investment) error {
	cur, ok := t.st.investments[inv.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != inv.Version {
		return domain.ErrConflict
	}
	inv.Version++
	t.st.investments[inv.ID] = cloneInvestment(inv)
	return nil
}

func (t *investmentTable) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Investment, error) {
	var invs []domain.Investment
	for _, inv := range t.st.investments {
		if inv.UserID == userID {
			invs = append(invs, cloneInvestment(inv))
		}
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.Before(invs[j].CreatedAt) })
	return paginate(invs, opts), nil
}

func (t *investmentTable) ListActiveByProperty(_ context.Context, propertyID string) ([]domain.Investment, error) {
	var invs []domain.Investment
	for _, inv := range t.st.investments {
		if inv.PropertyID == propertyID && inv.Status == domain.InvestmentStatusActive {
			invs = append(invs, cloneInvestment(inv))
		}
	}
	sort.Slice(invs, func(i, j int) bool { return invs[i].CreatedAt.Before(invs[j].CreatedAt) })
	return invs, nil
}

// ---------------------------------------------------------------------------
// transaction table
// ---------------------------------------------------------------------------

type transactionTable view

func (t *transactionTable) Create(_ context.Context, tx domain.Transaction) error {
	if _, ok := t.st.transactions[tx.ID]; ok {
		return fmt.Errorf("memory: transaction %s exists: %w", tx.ID, domain.ErrConflict)
	}
	if tx.AnchorHash != nil {
		if _, dup := t.st.hashes[*tx.AnchorHash]; dup {
			return fmt.Errorf("memory: anchor hash already used: %w", domain.ErrConflict)
		}
		t.st.hashes[*tx.AnchorHash] = tx.ID
	}
	t.st.transactions[tx.ID] = cloneTransaction(tx)
	t.st.txOrder = append(t.st.txOrder, tx.ID)
	return nil
}

func (t *transactionTable) Get(_ context.Context, id string) (domain.Transaction, error) {
	tx, ok := t.st.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (t *transactionTable) UpdateStatus(_ context.Context, id string, expect, next domain.TransactionStatus, completedAt *time.Time) error {
	tx, ok := t.st.transactions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if tx.Status != expect {
		return fmt.Errorf("memory: transaction %s is %s, expected %s: %w", id, tx.Status, expect, domain.ErrInvalidState)
	}
	if err := domain.TransactionTransitions.Step(expect, next); err != nil {
		return err
	}
	tx.Status = next
	if completedAt != nil {
		at := *completedAt
		tx.CompletedAt = &at
	}
	t.st.transactions[id] = tx
	return nil
}

func (t *transactionTable) AttachHash(_ context.Context, id, hash string) error {
	tx, ok := t.st.transactions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if owner, dup := t.st.hashes[hash]; dup && owner != id {
		return fmt.Errorf("memory: anchor hash already used: %w", domain.ErrConflict)
	}
	tx.AnchorHash = &hash
	t.st.transactions[id] = tx
	t.st.hashes[hash] = id
	return nil
}

func (t *transactionTable) ListByUser(_ context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, id := range t.st.txOrder {
		tx := t.st.transactions[id]
		if tx.UserID != userID {
			continue
		}
		if opts.Since != nil && tx.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && tx.CreatedAt.After(*opts.Until) {
			continue
		}
		txs = append(txs, cloneTransaction(tx))
	}
	return paginate(txs, opts), nil
}

func (t *transactionTable) ListBefore(_ context.Context, before time.Time) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for _, id := range t.st.txOrder {
		tx := t.st.transactions[id]
		if tx.CreatedAt.Before(before) {
			txs = append(txs, cloneTransaction(tx))
		}
	}
	return txs, nil
}

// ---------------------------------------------------------------------------
// top-level (auto-commit) table wrappers
//
// Reads outside Atomic take the mutex briefly and serve from live state.
// Writes outside Atomic run as single-operation atomic units.
// ---------------------------------------------------------------------------

type walletView struct{ s *Store }

func (v walletView) Create(ctx context.Context, w domain.Wallet) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.Wallets().Create(ctx, w) })
}

func (v walletView) Get(ctx context.Context, userID string) (domain.Wallet, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&walletTable{st: v.s.st}).Get(ctx, userID)
}

func (v walletView) Update(ctx context.Context, w domain.Wallet) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.Wallets().Update(ctx, w) })
}

type propertyView struct{ s *Store }

func (v propertyView) Create(ctx context.Context, p domain.Property) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.Properties().Create(ctx, p) })
}

func (v propertyView) Get(ctx context.Context, id string) (domain.Property, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&propertyTable{st: v.s.st}).Get(ctx, id)
}

func (v propertyView) Update(ctx context.Context, p domain.Property) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.Properties().Update(ctx, p) })
}

func (v propertyView) List(ctx context.Context, opts domain.ListOpts) ([]domain.Property, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&propertyTable{st: v.s.st}).List(ctx, opts)
}

type investmentView struct{ s *Store }

func (v investmentView) Create(ctx context.Context, inv domain.Investment) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.Investments().Create(ctx, inv) })
}

func (v investmentView) Get(ctx context.Context, id string) (domain.Investment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&investmentTable{st: v.s.st}).Get(ctx, id)
}

func (v investmentView) Update(ctx context.Context, inv domain.Investment) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.Investments().Update(ctx, inv) })
}

func (v investmentView) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Investment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&investmentTable{st: v.s.st}).ListByUser(ctx, userID, opts)
}

func (v investmentView) ListActiveByProperty(ctx context.Context, propertyID string) ([]domain.Investment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&investmentTable{st: v.s.st}).ListActiveByProperty(ctx, propertyID)
}

type transactionView struct{ s *Store }

func (v transactionView) Create(ctx context.Context, tx domain.Transaction) error {
	return v.s.Atomic(ctx, func(ltx domain.LedgerTx) error { return ltx.Transactions().Create(ctx, tx) })
}

func (v transactionView) Get(ctx context.Context, id string) (domain.Transaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&transactionTable{st: v.s.st}).Get(ctx, id)
}

func (v transactionView) UpdateStatus(ctx context.Context, id string, expect, next domain.TransactionStatus, completedAt *time.Time) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error {
		return tx.Transactions().UpdateStatus(ctx, id, expect, next, completedAt)
	})
}

func (v transactionView) AttachHash(ctx context.Context, id, hash string) error {
	return v.s.Atomic(ctx, func(tx domain.LedgerTx) error { return tx.Transactions().AttachHash(ctx, id, hash) })
}

func (v transactionView) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Transaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&transactionTable{st: v.s.st}).ListByUser(ctx, userID, opts)
}

func (v transactionView) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return (&transactionTable{st: v.s.st}).ListBefore(ctx, before)
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// Compile-time interface check.
var _ domain.LedgerStore = (*Store)(nil)
