package school

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
	"github.com/dmitrymomot/leveledu/pkg/qrcode"
)

type CreateStudentInput struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	ClassID string `json:"classId,omitempty" validate:"omitempty,objectid"`
}

// CreateStudent adds a student under the student limit, with its QR badge,
// and enrolls it in the class when one is given.
func (s *Service) CreateStudent(ctx context.Context, tenantID bson.ObjectID, in CreateStudentInput) (*Student, error) {
	classID, err := optionalID(in.ClassID)
	if err != nil {
		return nil, err
	}
	if !classID.IsZero() {
		if err := s.requireClass(ctx, tenantID, classID); err != nil {
			return nil, err
		}
	}

	st := &Student{
		ID:                bson.NewObjectID(),
		TenantID:          tenantID,
		Name:              strings.TrimSpace(in.Name),
		ClassID:           classID,
		CompletedMissions: []bson.ObjectID{},
		CreatedAt:         s.now().UTC(),
	}
	if st.QRCode, err = qrcode.StudentBadge(st.ID, tenantID); err != nil {
		return nil, err
	}

	err = s.quota.Reserve(ctx, tenantID, limits.ResourceStudent, func(ctx context.Context) error {
		if err := s.store.Students.Insert(ctx, st); err != nil {
			return err
		}
		if classID.IsZero() {
			return nil
		}
		return s.store.Classes.AddStudent(ctx, tenantID, classID, st.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "student created",
		logger.TenantID(tenantID.Hex()),
		logger.UserID(st.ID.Hex()))
	return st, nil
}

func (s *Service) Student(ctx context.Context, tenantID, id bson.ObjectID) (*Student, error) {
	return s.store.Students.Get(ctx, tenantID, id)
}

// Students lists the tenant's students, optionally of one class.
func (s *Service) Students(ctx context.Context, tenantID, classID bson.ObjectID) ([]Student, error) {
	return s.store.Students.List(ctx, tenantID, classID)
}

// UpdateStudentInput changes a student. A nil ClassID keeps the class; an
// empty one removes the student from its class.
type UpdateStudentInput struct {
	Name    string  `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	ClassID *string `json:"classId,omitempty" validate:"omitempty"`
}

// UpdateStudent renames a student and moves it between class rosters.
func (s *Service) UpdateStudent(ctx context.Context, tenantID, id bson.ObjectID, in UpdateStudentInput) (*Student, error) {
	st, err := s.store.Students.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		st.Name = name
	}
	from := st.ClassID
	if in.ClassID != nil {
		to, err := optionalID(*in.ClassID)
		if err != nil {
			return nil, err
		}
		if !to.IsZero() {
			if err := s.requireClass(ctx, tenantID, to); err != nil {
				return nil, err
			}
		}
		st.ClassID = to
	}

	err = s.store.Tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.Students.Update(ctx, st); err != nil {
			return err
		}
		if from == st.ClassID {
			return nil
		}
		if !from.IsZero() {
			if err := s.store.Classes.RemoveStudent(ctx, tenantID, from, id); err != nil && !errors.Is(err, ErrClassNotFound) {
				return err
			}
		}
		if !st.ClassID.IsZero() {
			return s.store.Classes.AddStudent(ctx, tenantID, st.ClassID, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStudent removes the student and its roster entry.
func (s *Service) DeleteStudent(ctx context.Context, tenantID, id bson.ObjectID) error {
	st, err := s.store.Students.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return s.store.Tx.Transaction(ctx, func(ctx context.Context) error {
		if !st.ClassID.IsZero() {
			if err := s.store.Classes.RemoveStudent(ctx, tenantID, st.ClassID, id); err != nil && !errors.Is(err, ErrClassNotFound) {
				return err
			}
		}
		return s.store.Students.Delete(ctx, tenantID, id)
	})
}

// Badge renders the student's QR login badge as PNG.
func (s *Service) Badge(ctx context.Context, tenantID, id bson.ObjectID, size int) ([]byte, error) {
	st, err := s.store.Students.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return qrcode.Generate(qrcode.BadgePayload(st.ID, st.TenantID), size)
}
