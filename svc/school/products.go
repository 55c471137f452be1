package school

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
)

type ProductInput struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	Description string   `json:"description" validate:"required,max=2000"`
	Price       int64    `json:"price" validate:"gte=0"`
	Stock       int64    `json:"stock" validate:"gte=0"`
	MaxPerUser  int64    `json:"maxPerUser" validate:"gte=1"`
	Category    Category `json:"category" validate:"required,oneof=Material Experiências Privilégios"`
	ClassID     string   `json:"classId" validate:"required,objectid"`
}

func (s *Service) productFrom(ctx context.Context, tenantID bson.ObjectID, in ProductInput) (*Product, error) {
	classID, err := ParseID(in.ClassID)
	if err != nil {
		return nil, err
	}
	if err := s.requireClass(ctx, tenantID, classID); err != nil {
		return nil, err
	}
	return &Product{
		TenantID:    tenantID,
		ClassID:     classID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		MaxPerUser:  in.MaxPerUser,
		Category:    in.Category,
	}, nil
}

// CreateProduct adds a store product under the product limit.
func (s *Service) CreateProduct(ctx context.Context, tenantID bson.ObjectID, in ProductInput) (*Product, error) {
	p, err := s.productFrom(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = s.now().UTC()
	err = s.quota.Reserve(ctx, tenantID, limits.ResourceProduct, func(ctx context.Context) error {
		return s.store.Products.Insert(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Product(ctx context.Context, tenantID, id bson.ObjectID) (*Product, error) {
	return s.store.Products.Get(ctx, tenantID, id)
}

func (s *Service) Products(ctx context.Context, tenantID, classID bson.ObjectID) ([]Product, error) {
	return s.store.Products.List(ctx, tenantID, classID)
}

func (s *Service) UpdateProduct(ctx context.Context, tenantID, id bson.ObjectID, in ProductInput) (*Product, error) {
	cur, err := s.store.Products.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	p, err := s.productFrom(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	p.ID, p.CreatedAt = cur.ID, cur.CreatedAt
	if err := s.store.Products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, tenantID, id bson.ObjectID) error {
	return s.store.Products.Delete(ctx, tenantID, id)
}

// StudentProducts lists the store of the student's class.
func (s *Service) StudentProducts(ctx context.Context, tenantID, userID bson.ObjectID) ([]Product, error) {
	st, err := s.store.Students.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if st.ClassID.IsZero() {
		return nil, ErrStudentWithoutClass
	}
	return s.store.Products.List(ctx, tenantID, st.ClassID)
}
