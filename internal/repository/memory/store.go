// Package memory is a process-local ledger store. A single lock serializes
// every unit of work; failed units are rolled back from an undo journal.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository"
	"github.com/utafrali/pointledger/pkg/pagination"
)

// ErrReadOnly is returned by mutators called inside View.
var ErrReadOnly = errors.New("write attempted in read-only view")

type pairKey struct {
	address   string
	productID int64
}

// Store keeps all ledger state in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	accounts     map[string]domain.Account
	products     []domain.Product
	productCount int64
	purchases    map[string][]domain.Purchase
	purchased    map[pairKey]int
	reviews      map[int64][]domain.Review
	reviewed     map[pairKey]struct{}
	reviewedBy   map[string][]int64
	treasury     domain.Treasury
	withdrawals  map[string][]domain.Withdrawal
}

// New creates an empty ledger whose treasury belongs to owner.
func New(owner string) *Store {
	return &Store{
		accounts:    make(map[string]domain.Account),
		purchases:   make(map[string][]domain.Purchase),
		purchased:   make(map[pairKey]int),
		reviews:     make(map[int64][]domain.Review),
		reviewed:    make(map[pairKey]struct{}),
		reviewedBy:  make(map[string][]int64),
		treasury:    domain.Treasury{Owner: owner},
		withdrawals: make(map[string][]domain.Withdrawal),
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Atomic(ctx context.Context, fn func(repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	committed := false
	// A panicking fn must not leave staged writes behind.
	defer func() {
		if !committed {
			t.rollback()
		}
	}()

	if err := fn(t); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) View(ctx context.Context, fn func(repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{s: s, readOnly: true})
}

func (s *Store) Ping(context.Context) error { return nil }

type tx struct {
	s        *Store
	readOnly bool
	undo     []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *tx) AccountByAddress(_ context.Context, address string) (*domain.Account, error) {
	a, ok := t.s.accounts[address]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (t *tx) CreateAccount(_ context.Context, account *domain.Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.s.accounts[account.Address]; ok {
		return domain.AlreadyRegisteredError(account.Address)
	}
	t.s.accounts[account.Address] = *account
	address := account.Address
	t.undo = append(t.undo, func() { delete(t.s.accounts, address) })
	return nil
}

func (t *tx) UpdateAccountPoints(_ context.Context, address string, points int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	a, ok := t.s.accounts[address]
	if !ok {
		return repository.ErrNotFound
	}
	prev := a.Points
	a.Points = points
	t.s.accounts[address] = a
	t.undo = append(t.undo, func() {
		a := t.s.accounts[address]
		a.Points = prev
		t.s.accounts[address] = a
	})
	return nil
}

func (t *tx) Treasury(context.Context) (*domain.Treasury, error) {
	tr := t.s.treasury
	return &tr, nil
}

func (t *tx) UpdateTreasury(_ context.Context, tr *domain.Treasury) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev := t.s.treasury
	t.s.treasury.Balance = tr.Balance
	t.s.treasury.TotalReceived = tr.TotalReceived
	t.s.treasury.TotalWithdrawn = tr.TotalWithdrawn
	t.undo = append(t.undo, func() { t.s.treasury = prev })
	return nil
}

func (t *tx) NextProductID(context.Context) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	t.s.productCount++
	t.undo = append(t.undo, func() { t.s.productCount-- })
	return t.s.productCount, nil
}

func (t *tx) ProductByID(_ context.Context, id int64) (*domain.Product, error) {
	if id < 1 || id > int64(len(t.s.products)) {
		return nil, repository.ErrNotFound
	}
	p := t.s.products[id-1]
	return &p, nil
}

func (t *tx) CreateProduct(_ context.Context, p *domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	if want := int64(len(t.s.products)) + 1; p.ID != want {
		return fmt.Errorf("create product: id %d out of sequence, want %d", p.ID, want)
	}
	t.s.products = append(t.s.products, *p)
	t.undo = append(t.undo, func() { t.s.products = t.s.products[:len(t.s.products)-1] })
	return nil
}

func (t *tx) UpdateProduct(_ context.Context, p *domain.Product) error {
	if err := t.writable(); err != nil {
		return err
	}
	if p.ID < 1 || p.ID > int64(len(t.s.products)) {
		return repository.ErrNotFound
	}
	idx := p.ID - 1
	prev := t.s.products[idx]
	t.s.products[idx].Stock = p.Stock
	t.s.products[idx].TotalReviews = p.TotalReviews
	t.s.products[idx].TotalRatingSum = p.TotalRatingSum
	t.undo = append(t.undo, func() { t.s.products[idx] = prev })
	return nil
}

func (t *tx) ListProducts(_ context.Context, limit, offset int) ([]domain.Product, int, error) {
	page := pagination.Slice(t.s.products, pagination.Params{Limit: limit, Offset: offset})
	return page, len(t.s.products), nil
}

func (t *tx) CreatePurchase(_ context.Context, p *domain.Purchase) error {
	if err := t.writable(); err != nil {
		return err
	}
	buyer, key := p.Buyer, pairKey{p.Buyer, p.ProductID}
	t.s.purchases[buyer] = append(t.s.purchases[buyer], *p)
	t.s.purchased[key]++
	t.undo = append(t.undo, func() {
		list := t.s.purchases[buyer]
		t.s.purchases[buyer] = list[:len(list)-1]
		if t.s.purchased[key]--; t.s.purchased[key] == 0 {
			delete(t.s.purchased, key)
		}
	})
	return nil
}

func (t *tx) HasPurchased(_ context.Context, buyer string, productID int64) (bool, error) {
	return t.s.purchased[pairKey{buyer, productID}] > 0, nil
}

func (t *tx) ListPurchases(_ context.Context, buyer string, limit, offset int) ([]domain.Purchase, int, error) {
	all := t.s.purchases[buyer]
	return pagination.Slice(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}

func (t *tx) HasReviewed(_ context.Context, reviewer string, productID int64) (bool, error) {
	_, ok := t.s.reviewed[pairKey{reviewer, productID}]
	return ok, nil
}

func (t *tx) CreateReview(_ context.Context, r *domain.Review) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := pairKey{r.Reviewer, r.ProductID}
	if _, ok := t.s.reviewed[key]; ok {
		return domain.AlreadyReviewedError(r.Reviewer, r.ProductID)
	}
	productID, reviewer := r.ProductID, r.Reviewer
	t.s.reviewed[key] = struct{}{}
	t.s.reviews[productID] = append(t.s.reviews[productID], *r)
	t.s.reviewedBy[reviewer] = append(t.s.reviewedBy[reviewer], productID)
	t.undo = append(t.undo, func() {
		delete(t.s.reviewed, key)
		list := t.s.reviews[productID]
		t.s.reviews[productID] = list[:len(list)-1]
		ids := t.s.reviewedBy[reviewer]
		t.s.reviewedBy[reviewer] = ids[:len(ids)-1]
	})
	return nil
}

func (t *tx) ReviewedProductIDs(_ context.Context, reviewer string) ([]int64, error) {
	ids := t.s.reviewedBy[reviewer]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out, nil
}

func (t *tx) ListReviews(_ context.Context, productID int64, limit, offset int) ([]domain.Review, int, error) {
	all := t.s.reviews[productID]
	return pagination.Slice(all, pagination.Params{Limit: limit, Offset: offset}), len(all), nil
}

func (t *tx) CreateWithdrawal(_ context.Context, w *domain.Withdrawal) error {
	if err := t.writable(); err != nil {
		return err
	}
	recipient := w.Recipient
	t.s.withdrawals[recipient] = append(t.s.withdrawals[recipient], *w)
	t.undo = append(t.undo, func() {
		list := t.s.withdrawals[recipient]
		t.s.withdrawals[recipient] = list[:len(list)-1]
	})
	return nil
}

func (t *tx) WithdrawnTo(_ context.Context, recipient string) (int64, error) {
	var total int64
	for _, w := range t.s.withdrawals[recipient] {
		total += w.Amount
	}
	return total, nil
}
