package domain

import "time"

// Treasury holds the base currency received for points. Balance always
// equals TotalReceived minus TotalWithdrawn.
type Treasury struct {
	Owner          string `json:"owner"`
	Balance        int64  `json:"balance"`
	TotalReceived  int64  `json:"total_received"`
	TotalWithdrawn int64  `json:"total_withdrawn"`
}

// Withdrawal records a transfer of the treasury balance to the owner.
type Withdrawal struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckDeposit verifies that payment can be added to the treasury.
func (t *Treasury) CheckDeposit(payment int64) error {
	if payment < 0 {
		return InvalidAmountError("payment must not be negative")
	}
	if _, ok := addAmounts(t.Balance, payment); !ok {
		return OverflowError("treasury balance")
	}
	if _, ok := addAmounts(t.TotalReceived, payment); !ok {
		return OverflowError("treasury receipts")
	}
	return nil
}

// Deposit adds payment. CheckDeposit must have succeeded.
func (t *Treasury) Deposit(payment int64) {
	t.Balance += payment
	t.TotalReceived += payment
}

// IsOwner reports whether address may withdraw.
func (t *Treasury) IsOwner(address string) bool {
	return address != "" && address == t.Owner
}

// Drain empties the balance and returns the amount removed.
func (t *Treasury) Drain() int64 {
	amount := t.Balance
	t.Balance = 0
	t.TotalWithdrawn += amount
	return amount
}

// PointPrice converts point amounts to base currency at a fixed rate.
type PointPrice int64

// Cost returns the payment owed for amount points.
func (p PointPrice) Cost(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, InvalidAmountError("point amount must be greater than zero")
	}
	cost, ok := mulAmounts(amount, int64(p))
	if !ok {
		return 0, OverflowError("payment for requested points")
	}
	return cost, nil
}
