package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository"
	"github.com/utafrali/pointledger/pkg/database"
)

type pgTx struct {
	tx   pgx.Tx
	lock bool
}

func (t *pgTx) forUpdate(query string) string {
	if t.lock {
		return query + " FOR UPDATE"
	}
	return query
}

func (t *pgTx) scan(ctx context.Context, op, query string, args []any, dest ...any) error {
	ctx, end := database.TraceQuery(ctx, op, query)
	err := t.tx.QueryRow(ctx, query, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		end(nil)
		return repository.ErrNotFound
	}
	end(err)
	return err
}

func (t *pgTx) exec(ctx context.Context, op, query string, args ...any) (pgconn.CommandTag, error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	tag, err := t.tx.Exec(ctx, query, args...)
	end(err)
	return tag, err
}

func (t *pgTx) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := t.scan(ctx, op, query, args, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// window maps a non-positive limit to LIMIT NULL, which PostgreSQL treats
// as no limit.
func window(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func (t *pgTx) AccountByAddress(ctx context.Context, address string) (*domain.Account, error) {
	query := t.forUpdate(`
		SELECT address, kind, points, created_at
		FROM accounts
		WHERE address = $1`)

	var (
		a    domain.Account
		kind string
	)
	err := t.scan(ctx, "AccountByAddress", query, []any{address}, &a.Address, &kind, &a.Points, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.Kind = domain.Kind(kind)
	return &a, nil
}

func (t *pgTx) CreateAccount(ctx context.Context, a *domain.Account) error {
	query := `
		INSERT INTO accounts (address, kind, points, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := t.exec(ctx, "CreateAccount", query, a.Address, string(a.Kind), a.Points, a.CreatedAt); err != nil {
		if isUniqueViolation(err, "accounts_pkey") {
			return domain.AlreadyRegisteredError(a.Address)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateAccountPoints(ctx context.Context, address string, points int64) error {
	query := `UPDATE accounts SET points = $2 WHERE address = $1`

	tag, err := t.exec(ctx, "UpdateAccountPoints", query, address, points)
	if err != nil {
		return fmt.Errorf("update account points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Treasury
// ---------------------------------------------------------------------------

func (t *pgTx) Treasury(ctx context.Context) (*domain.Treasury, error) {
	query := t.forUpdate(`
		SELECT owner, balance, total_received, total_withdrawn
		FROM ledger_state
		WHERE id = 1`)

	var tr domain.Treasury
	if err := t.scan(ctx, "Treasury", query, nil, &tr.Owner, &tr.Balance, &tr.TotalReceived, &tr.TotalWithdrawn); err != nil {
		return nil, fmt.Errorf("get treasury: %w", err)
	}
	return &tr, nil
}

func (t *pgTx) UpdateTreasury(ctx context.Context, tr *domain.Treasury) error {
	query := `
		UPDATE ledger_state
		SET balance = $1, total_received = $2, total_withdrawn = $3
		WHERE id = 1`

	if _, err := t.exec(ctx, "UpdateTreasury", query, tr.Balance, tr.TotalReceived, tr.TotalWithdrawn); err != nil {
		return fmt.Errorf("update treasury: %w", err)
	}
	return nil
}

func (t *pgTx) NextProductID(ctx context.Context) (int64, error) {
	query := `
		UPDATE ledger_state
		SET product_count = product_count + 1
		WHERE id = 1
		RETURNING product_count`

	var id int64
	if err := t.scan(ctx, "NextProductID", query, nil, &id); err != nil {
		return 0, fmt.Errorf("allocate product id: %w", err)
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

const productColumns = `id, name, price, stock, is_beta_test, total_reviews, total_rating_sum, company, created_at`

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsBetaTest,
		&p.TotalReviews, &p.TotalRatingSum, &p.Company, &p.CreatedAt)
}

func (t *pgTx) ProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := t.forUpdate(`SELECT ` + productColumns + ` FROM products WHERE id = $1`)

	ctx, end := database.TraceQuery(ctx, "ProductByID", query)
	var p domain.Product
	err := scanProduct(t.tx.QueryRow(ctx, query, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		end(nil)
		return nil, repository.ErrNotFound
	}
	end(err)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (t *pgTx) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := t.exec(ctx, "CreateProduct", query,
		p.ID, p.Name, p.Price, p.Stock, p.IsBetaTest,
		p.TotalReviews, p.TotalRatingSum, p.Company, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET stock = $2, total_reviews = $3, total_rating_sum = $4
		WHERE id = $1`

	tag, err := t.exec(ctx, "UpdateProduct", query, p.ID, p.Stock, p.TotalReviews, p.TotalRatingSum)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *pgTx) ListProducts(ctx context.Context, limit, offset int) ([]domain.Product, int, error) {
	total, err := t.count(ctx, "CountProducts", `SELECT count(*) FROM products`)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products ORDER BY id LIMIT $1 OFFSET $2`
	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	rows, err := t.tx.Query(ctx, query, window(limit), offset)
	if err != nil {
		end(err)
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			end(err)
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	err = rows.Err()
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

// ---------------------------------------------------------------------------
// Purchases
// ---------------------------------------------------------------------------

func (t *pgTx) CreatePurchase(ctx context.Context, p *domain.Purchase) error {
	query := `
		INSERT INTO purchases (id, buyer, product_id, price, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := t.exec(ctx, "CreatePurchase", query, p.ID, p.Buyer, p.ProductID, p.Price, p.CreatedAt); err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (t *pgTx) HasPurchased(ctx context.Context, buyer string, productID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM purchases WHERE buyer = $1 AND product_id = $2)`

	var ok bool
	if err := t.scan(ctx, "HasPurchased", query, []any{buyer, productID}, &ok); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return ok, nil
}

func (t *pgTx) ListPurchases(ctx context.Context, buyer string, limit, offset int) ([]domain.Purchase, int, error) {
	total, err := t.count(ctx, "CountPurchases", `SELECT count(*) FROM purchases WHERE buyer = $1`, buyer)
	if err != nil {
		return nil, 0, fmt.Errorf("count purchases: %w", err)
	}

	query := `
		SELECT id, buyer, product_id, price, created_at
		FROM purchases
		WHERE buyer = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListPurchases", query)
	rows, err := t.tx.Query(ctx, query, buyer, window(limit), offset)
	if err != nil {
		end(err)
		return nil, 0, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	purchases := []domain.Purchase{}
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.Buyer, &p.ProductID, &p.Price, &p.CreatedAt); err != nil {
			end(err)
			return nil, 0, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	err = rows.Err()
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("iterate purchases: %w", err)
	}
	return purchases, total, nil
}

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

func (t *pgTx) HasReviewed(ctx context.Context, reviewer string, productID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reviews WHERE reviewer = $1 AND product_id = $2)`

	var ok bool
	if err := t.scan(ctx, "HasReviewed", query, []any{reviewer, productID}, &ok); err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return ok, nil
}

func (t *pgTx) CreateReview(ctx context.Context, r *domain.Review) error {
	query := `
		INSERT INTO reviews (id, product_id, reviewer, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := t.exec(ctx, "CreateReview", query, r.ID, r.ProductID, r.Reviewer, r.Rating, r.Comment, r.CreatedAt); err != nil {
		if isUniqueViolation(err, "reviews_reviewer_product_key") {
			return domain.AlreadyReviewedError(r.Reviewer, r.ProductID)
		}
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (t *pgTx) ReviewedProductIDs(ctx context.Context, reviewer string) ([]int64, error) {
	query := `
		SELECT product_id
		FROM reviews
		WHERE reviewer = $1
		ORDER BY created_at, id`

	ctx, end := database.TraceQuery(ctx, "ReviewedProductIDs", query)
	rows, err := t.tx.Query(ctx, query, reviewer)
	if err != nil {
		end(err)
		return nil, fmt.Errorf("list reviewed products: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			end(err)
			return nil, fmt.Errorf("scan reviewed product: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	end(err)
	if err != nil {
		return nil, fmt.Errorf("iterate reviewed products: %w", err)
	}
	return ids, nil
}

func (t *pgTx) ListReviews(ctx context.Context, productID int64, limit, offset int) ([]domain.Review, int, error) {
	total, err := t.count(ctx, "CountReviews", `SELECT count(*) FROM reviews WHERE product_id = $1`, productID)
	if err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	query := `
		SELECT id, product_id, reviewer, rating, comment, created_at
		FROM reviews
		WHERE product_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	rows, err := t.tx.Query(ctx, query, productID, window(limit), offset)
	if err != nil {
		end(err)
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var r domain.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Reviewer, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			end(err)
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	err = rows.Err()
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, total, nil
}

// ---------------------------------------------------------------------------
// Withdrawals
// ---------------------------------------------------------------------------

func (t *pgTx) CreateWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (id, recipient, amount, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := t.exec(ctx, "CreateWithdrawal", query, w.ID, w.Recipient, w.Amount, w.CreatedAt); err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

func (t *pgTx) WithdrawnTo(ctx context.Context, recipient string) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM withdrawals WHERE recipient = $1`

	var total int64
	if err := t.scan(ctx, "WithdrawnTo", query, []any{recipient}, &total); err != nil {
		return 0, fmt.Errorf("sum withdrawals: %w", err)
	}
	return total, nil
}
