package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes the two disjoint account types.
type Kind string

const (
	KindUser    Kind = "user"
	KindCompany Kind = "company"
)

// Registration grants.
const (
	InitialUserPoints    int64 = 300
	InitialCompanyPoints int64 = 3000
)

// IsValid reports whether k is a known account kind.
func (k Kind) IsValid() bool {
	return k == KindUser || k == KindCompany
}

// InitialPoints returns the balance granted when an account of kind k registers.
func (k Kind) InitialPoints() int64 {
	if k == KindCompany {
		return InitialCompanyPoints
	}
	return InitialUserPoints
}

// Account is a registered ledger participant. An address holds at most one
// account and its kind never changes.
type Account struct {
	Address   string    `json:"address"`
	Kind      Kind      `json:"kind"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAccount builds a freshly registered account carrying its kind's grant.
func NewAccount(address string, kind Kind, now time.Time) (*Account, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown account kind %q", kind)
	}
	return &Account{
		Address:   address,
		Kind:      kind,
		Points:    kind.InitialPoints(),
		CreatedAt: now,
	}, nil
}

// ValidateAddress rejects empty or whitespace-padded identities.
func ValidateAddress(address string) error {
	if address == "" || strings.TrimSpace(address) != address {
		return UnauthorizedError("caller address is missing or malformed")
	}
	return nil
}

// CheckCredit verifies that amount can be added to the balance.
func (a *Account) CheckCredit(amount int64) error {
	if amount <= 0 {
		return InvalidAmountError("credit amount must be positive")
	}
	if _, ok := addAmounts(a.Points, amount); !ok {
		return OverflowError("point balance")
	}
	return nil
}

// Credit adds amount to the balance. CheckCredit must have succeeded.
func (a *Account) Credit(amount int64) {
	a.Points += amount
}

// CheckDebit verifies that the balance covers amount.
func (a *Account) CheckDebit(amount int64) error {
	if amount < 0 {
		return InvalidAmountError("debit amount must not be negative")
	}
	if a.Points < amount {
		return InsufficientPointsError(a.Points, amount)
	}
	return nil
}

// Debit subtracts amount from the balance. CheckDebit must have succeeded.
func (a *Account) Debit(amount int64) {
	a.Points -= amount
}
