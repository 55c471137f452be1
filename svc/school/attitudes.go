package school

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
)

type AttitudeInput struct {
	Title       string       `json:"title" validate:"required,min=1,max=200"`
	Description string       `json:"description" validate:"max=2000"`
	Type        AttitudeType `json:"type" validate:"required,oneof=positive negative"`
	Coins       int64        `json:"coins"`
	XP          int64        `json:"xp"`
	ClassID     string       `json:"classId" validate:"required,objectid"`
}

func (s *Service) attitudeFrom(ctx context.Context, tenantID bson.ObjectID, in AttitudeInput) (*Attitude, error) {
	classID, err := ParseID(in.ClassID)
	if err != nil {
		return nil, err
	}
	if err := s.requireClass(ctx, tenantID, classID); err != nil {
		return nil, err
	}
	return &Attitude{
		TenantID:    tenantID,
		ClassID:     classID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Type:        in.Type,
		Coins:       in.Coins,
		XP:          in.XP,
	}, nil
}

// CreateAttitude adds an attitude for a class under the attitude limit.
func (s *Service) CreateAttitude(ctx context.Context, tenantID bson.ObjectID, in AttitudeInput) (*Attitude, error) {
	a, err := s.attitudeFrom(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = s.now().UTC()
	err = s.quota.Reserve(ctx, tenantID, limits.ResourceAttitude, func(ctx context.Context) error {
		return s.store.Attitudes.Insert(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Attitude(ctx context.Context, tenantID, id bson.ObjectID) (*Attitude, error) {
	return s.store.Attitudes.Get(ctx, tenantID, id)
}

func (s *Service) Attitudes(ctx context.Context, tenantID bson.ObjectID) ([]Attitude, error) {
	return s.store.Attitudes.List(ctx, tenantID)
}

func (s *Service) UpdateAttitude(ctx context.Context, tenantID, id bson.ObjectID, in AttitudeInput) (*Attitude, error) {
	cur, err := s.store.Attitudes.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	a, err := s.attitudeFrom(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	a.ID, a.CreatedAt = cur.ID, cur.CreatedAt
	if err := s.store.Attitudes.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAttitude removes the attitude and its pending assignments.
func (s *Service) DeleteAttitude(ctx context.Context, tenantID, id bson.ObjectID) error {
	return s.store.Tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.Attitudes.Delete(ctx, tenantID, id); err != nil {
			return err
		}
		return s.store.Assignments.DeleteByAttitude(ctx, tenantID, id)
	})
}

type RewardInput struct {
	AttitudeID string   `json:"attitudeId" validate:"required,objectid"`
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,objectid"`
}

// RewardResult counts the assignments a reward created.
type RewardResult struct {
	Assigned int `json:"assigned"`
	Skipped  int `json:"skipped"`
}

// RewardAttitude assigns the attitude to students. Students that still
// hold an unclaimed assignment of it are skipped.
func (s *Service) RewardAttitude(ctx context.Context, tenantID bson.ObjectID, in RewardInput) (*RewardResult, error) {
	attitudeID, err := ParseID(in.AttitudeID)
	if err != nil {
		return nil, err
	}
	ids, err := ParseIDs(in.StudentIDs)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Attitudes.Get(ctx, tenantID, attitudeID); err != nil {
		return nil, err
	}
	if err := s.studentsExist(ctx, tenantID, ids); err != nil {
		return nil, err
	}

	res := &RewardResult{}
	for _, userID := range ids {
		existing, err := s.store.Assignments.Find(ctx, tenantID, attitudeID, userID)
		switch {
		case err == nil && !existing.IsClaimed:
			res.Skipped++
			continue
		case err != nil && !errors.Is(err, ErrAssignmentNotFound):
			return nil, err
		}
		err = s.store.Assignments.Insert(ctx, &Assignment{
			TenantID:   tenantID,
			AttitudeID: attitudeID,
			UserID:     userID,
			CreatedAt:  s.now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		res.Assigned++
	}
	return res, nil
}

// StudentAttitude is an assignment as the student sees it.
type StudentAttitude struct {
	AttitudeID  bson.ObjectID `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Type        AttitudeType  `json:"type"`
	Coins       int64         `json:"coins"`
	XP          int64         `json:"xp"`
	IsClaimed   bool          `json:"isClaimed"`
}

// StudentAttitudes lists the student's assignments with their attitudes.
// Assignments of deleted attitudes are left out.
func (s *Service) StudentAttitudes(ctx context.Context, tenantID, userID bson.ObjectID) ([]StudentAttitude, error) {
	if _, err := s.store.Students.Get(ctx, tenantID, userID); err != nil {
		return nil, err
	}
	assignments, err := s.store.Assignments.ListByUser(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	cache := make(map[bson.ObjectID]*Attitude)
	out := make([]StudentAttitude, 0, len(assignments))
	for _, as := range assignments {
		a, ok := cache[as.AttitudeID]
		if !ok {
			a, err = s.store.Attitudes.Get(ctx, tenantID, as.AttitudeID)
			if err != nil && !errors.Is(err, ErrAttitudeNotFound) {
				return nil, err
			}
			cache[as.AttitudeID] = a
		}
		if a == nil {
			continue
		}
		out = append(out, StudentAttitude{
			AttitudeID:  a.ID,
			Title:       a.Title,
			Description: a.Description,
			Type:        a.Type,
			Coins:       a.Coins,
			XP:          a.XP,
			IsClaimed:   as.IsClaimed,
		})
	}
	return out, nil
}

// ClaimAttitude credits an assigned attitude's coins and xp once.
func (s *Service) ClaimAttitude(ctx context.Context, tenantID, userID, attitudeID bson.ObjectID) (*Student, error) {
	as, err := s.store.Assignments.Find(ctx, tenantID, attitudeID, userID)
	if err != nil {
		return nil, err
	}
	if as.IsClaimed {
		return nil, ErrAlreadyClaimed
	}
	a, err := s.store.Attitudes.Get(ctx, tenantID, attitudeID)
	if err != nil {
		return nil, err
	}

	var st *Student
	err = s.store.Tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.store.Assignments.Claim(ctx, tenantID, as.ID, s.now().UTC()); err != nil {
			return err
		}
		var err error
		st, err = s.store.Students.Reward(ctx, tenantID, userID, a.Coins, a.XP, bson.NilObjectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
