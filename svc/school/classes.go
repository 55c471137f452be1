package school

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
)

type ClassInput struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
	Code string `json:"code" validate:"required,min=1,max=30"`
}

func (in ClassInput) normalized() ClassInput {
	return ClassInput{Name: strings.TrimSpace(in.Name), Code: strings.TrimSpace(in.Code)}
}

// CreateClass adds a class under the class limit. Codes are unique per
// tenant.
func (s *Service) CreateClass(ctx context.Context, tenantID bson.ObjectID, in ClassInput) (*Class, error) {
	in = in.normalized()
	c := &Class{
		TenantID:  tenantID,
		Name:      in.Name,
		Code:      in.Code,
		Students:  []bson.ObjectID{},
		CreatedAt: s.now().UTC(),
	}
	err := s.quota.Reserve(ctx, tenantID, limits.ResourceClass, func(ctx context.Context) error {
		return s.store.Classes.Insert(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Class(ctx context.Context, tenantID, id bson.ObjectID) (*Class, error) {
	return s.store.Classes.Get(ctx, tenantID, id)
}

func (s *Service) Classes(ctx context.Context, tenantID bson.ObjectID) ([]Class, error) {
	return s.store.Classes.List(ctx, tenantID)
}

func (s *Service) UpdateClass(ctx context.Context, tenantID, id bson.ObjectID, in ClassInput) (*Class, error) {
	in = in.normalized()
	c, err := s.store.Classes.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	c.Name, c.Code = in.Name, in.Code
	if err := s.store.Classes.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteClass removes the class and unassigns its students.
func (s *Service) DeleteClass(ctx context.Context, tenantID, id bson.ObjectID) error {
	if _, err := s.store.Classes.Get(ctx, tenantID, id); err != nil {
		return err
	}
	return s.store.Tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.Students.ClearClass(ctx, tenantID, id); err != nil {
			return err
		}
		return s.store.Classes.Delete(ctx, tenantID, id)
	})
}
