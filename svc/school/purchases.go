package school

import (
	"context"
	"errors"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/logger"
)

type PurchaseInput struct {
	UserID    string `json:"userId" validate:"required,objectid"`
	ProductID string `json:"productId" validate:"required,objectid"`
}

// Purchase buys one unit of a product. The checks run in a fixed order:
// product, stock, student, balance, per-student limit. The purchase, the
// coin debit and the stock decrement commit together or not at all.
func (s *Service) Purchase(ctx context.Context, tenantID bson.ObjectID, in PurchaseInput) (*Purchase, error) {
	userID, err := ParseID(in.UserID)
	if err != nil {
		return nil, err
	}
	productID, err := ParseID(in.ProductID)
	if err != nil {
		return nil, err
	}

	p, err := s.store.Products.Get(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= 0 {
		return nil, ErrOutOfStock
	}
	st, err := s.store.Students.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if st.Coins < p.Price {
		return nil, ErrInsufficientCoins
	}
	bought, err := s.store.Purchases.CountFor(ctx, tenantID, userID, productID)
	if err != nil {
		return nil, err
	}
	if bought >= p.MaxPerUser {
		return nil, ErrPurchaseLimit
	}

	purchase := &Purchase{
		TenantID:  tenantID,
		UserID:    userID,
		ProductID: productID,
		Price:     p.Price,
		CreatedAt: s.now().UTC(),
	}
	err = s.store.Tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.Purchases.Insert(ctx, purchase); err != nil {
			return err
		}
		if err := s.store.Students.Debit(ctx, tenantID, userID, p.Price); err != nil {
			return err
		}
		return s.store.Products.DecrementStock(ctx, tenantID, productID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "product purchased",
		logger.TenantID(tenantID.Hex()),
		logger.UserID(userID.Hex()),
		slog.String("product_id", productID.Hex()),
		slog.Int64("price", p.Price))
	return purchase, nil
}

// PendingPurchase is an undelivered purchase with the names an admin
// needs to hand it over.
type PendingPurchase struct {
	Purchase
	StudentName string        `json:"studentName"`
	ClassID     bson.ObjectID `json:"classId,omitzero"`
	ProductName string        `json:"productName"`
	Category    Category      `json:"category"`
}

func (s *Service) PendingPurchases(ctx context.Context, tenantID bson.ObjectID) ([]PendingPurchase, error) {
	pending, err := s.store.Purchases.ListPending(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	students := make(map[bson.ObjectID]*Student)
	products := make(map[bson.ObjectID]*Product)
	out := make([]PendingPurchase, 0, len(pending))
	for _, p := range pending {
		item := PendingPurchase{Purchase: p}
		st, ok := students[p.UserID]
		if !ok {
			if st, err = s.store.Students.Get(ctx, tenantID, p.UserID); err != nil && !errors.Is(err, ErrStudentNotFound) {
				return nil, err
			}
			students[p.UserID] = st
		}
		if st != nil {
			item.StudentName, item.ClassID = st.Name, st.ClassID
		}
		pr, ok := products[p.ProductID]
		if !ok {
			if pr, err = s.store.Products.Get(ctx, tenantID, p.ProductID); err != nil && !errors.Is(err, ErrProductNotFound) {
				return nil, err
			}
			products[p.ProductID] = pr
		}
		if pr != nil {
			item.ProductName, item.Category = pr.Name, pr.Category
		}
		out = append(out, item)
	}
	return out, nil
}

// DeliverPurchase marks a pending purchase as handed over.
func (s *Service) DeliverPurchase(ctx context.Context, tenantID, id bson.ObjectID) (*Purchase, error) {
	return s.store.Purchases.Deliver(ctx, tenantID, id, s.now().UTC())
}
