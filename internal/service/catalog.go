package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository"
)

// ProductView is a product together with its derived average rating.
type ProductView struct {
	domain.Product
	AverageRating int64 `json:"average_rating"`
	Rated         bool  `json:"rated"`
}

func viewOf(p domain.Product) ProductView {
	avg, ok := p.AverageRating()
	return ProductView{Product: p, AverageRating: avg, Rated: ok}
}

// AddProduct lists a new product owned by the calling company.
func (s *Ledger) AddProduct(ctx context.Context, caller string, in domain.NewProductInput) (p *domain.Product, err error) {
	ctx, done := s.begin(ctx, "AddProduct", attribute.String("ledger.caller", caller))
	defer func() { done(err) }()

	if err := domain.ValidateAddress(caller); err != nil {
		return nil, err
	}

	err = s.store.Atomic(ctx, func(tx repository.Tx) error {
		acct, err := lookupAccount(ctx, tx, caller)
		if err != nil {
			return err
		}
		if acct == nil || acct.Kind != domain.KindCompany {
			return domain.UnauthorizedError("only registered companies can add products")
		}
		if err := in.Validate(); err != nil {
			return err
		}

		id, err := tx.NextProductID(ctx)
		if err != nil {
			return fmt.Errorf("allocate product id: %w", err)
		}
		p = domain.NewProduct(id, caller, in, s.now())
		if err := tx.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx).InfoContext(ctx, "product added",
		slog.Int64("product_id", p.ID),
		slog.String("company", p.Company),
		slog.Int64("price", p.Price),
		slog.Int64("stock", p.Stock),
	)
	return p, nil
}

// GetProduct returns a product with its average rating.
func (s *Ledger) GetProduct(ctx context.Context, id int64) (view ProductView, err error) {
	ctx, done := s.begin(ctx, "GetProduct", attribute.Int64("ledger.product_id", id))
	defer func() { done(err) }()

	err = s.store.View(ctx, func(tx repository.Tx) error {
		p, err := loadProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		view = viewOf(*p)
		return nil
	})
	if err != nil {
		return ProductView{}, err
	}
	return view, nil
}

// ListProducts returns the whole catalog in id order.
func (s *Ledger) ListProducts(ctx context.Context) (views []ProductView, err error) {
	ctx, done := s.begin(ctx, "ListProducts")
	defer func() { done(err) }()

	var products []domain.Product
	err = s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		products, _, err = tx.ListProducts(ctx, 0, 0)
		if err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	views = make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, viewOf(p))
	}
	return views, nil
}
