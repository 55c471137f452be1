package school

import (
	"context"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/logger"
)

type MissionInput struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Coins       int64  `json:"coins" validate:"gte=0"`
	ClassID     string `json:"classId" validate:"required,objectid"`
}

func (s *Service) missionFrom(ctx context.Context, tenantID bson.ObjectID, in MissionInput) (*Mission, error) {
	classID, err := ParseID(in.ClassID)
	if err != nil {
		return nil, err
	}
	if err := s.requireClass(ctx, tenantID, classID); err != nil {
		return nil, err
	}
	return &Mission{
		TenantID:    tenantID,
		ClassID:     classID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Coins:       in.Coins,
	}, nil
}

// CreateMission adds a mission for a class under the mission limit.
func (s *Service) CreateMission(ctx context.Context, tenantID bson.ObjectID, in MissionInput) (*Mission, error) {
	m, err := s.missionFrom(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	m.AllowedUsers = []bson.ObjectID{}
	m.CompletedBy = []bson.ObjectID{}
	m.CreatedAt = s.now().UTC()
	err = s.quota.Reserve(ctx, tenantID, limits.ResourceMission, func(ctx context.Context) error {
		return s.store.Missions.Insert(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Mission(ctx context.Context, tenantID, id bson.ObjectID) (*Mission, error) {
	return s.store.Missions.Get(ctx, tenantID, id)
}

func (s *Service) Missions(ctx context.Context, tenantID, classID bson.ObjectID) ([]Mission, error) {
	return s.store.Missions.List(ctx, tenantID, classID)
}

func (s *Service) UpdateMission(ctx context.Context, tenantID, id bson.ObjectID, in MissionInput) (*Mission, error) {
	cur, err := s.store.Missions.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	m, err := s.missionFrom(ctx, tenantID, in)
	if err != nil {
		return nil, err
	}
	cur.ClassID, cur.Title, cur.Description, cur.Coins = m.ClassID, m.Title, m.Description, m.Coins
	if err := s.store.Missions.Update(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *Service) DeleteMission(ctx context.Context, tenantID, id bson.ObjectID) error {
	return s.store.Missions.Delete(ctx, tenantID, id)
}

type AllowInput struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,objectid"`
}

// AllowMission lets students complete a mission. Every student must belong
// to the tenant and none may already be allowed.
func (s *Service) AllowMission(ctx context.Context, tenantID, id bson.ObjectID, in AllowInput) (*Mission, error) {
	ids, err := ParseIDs(in.UserIDs)
	if err != nil {
		return nil, err
	}
	m, err := s.store.Missions.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.studentsExist(ctx, tenantID, ids); err != nil {
		return nil, err
	}
	if slices.ContainsFunc(ids, m.allows) {
		return nil, ErrAlreadyAllowed
	}
	if err := s.store.Missions.Allow(ctx, tenantID, id, ids); err != nil {
		return nil, err
	}
	m.AllowedUsers = append(m.AllowedUsers, ids...)
	return m, nil
}

// AvailableMissions lists the missions of the student's class, and those
// the student was allowed on, that it has not completed.
func (s *Service) AvailableMissions(ctx context.Context, tenantID, userID bson.ObjectID) ([]Mission, error) {
	st, err := s.store.Students.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.Missions.List(ctx, tenantID, bson.NilObjectID)
	if err != nil {
		return nil, err
	}
	out := make([]Mission, 0, len(all))
	for _, m := range all {
		inClass := !st.ClassID.IsZero() && m.ClassID == st.ClassID
		if (inClass || m.allows(userID)) && !st.hasCompleted(m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Completion is the result of a completed mission.
type Completion struct {
	Student  *Student `json:"user"`
	Mission  *Mission `json:"mission"`
	NewLevel int64    `json:"newLevel"`
}

// CompleteMission rewards an allowed student with the mission's coins and
// MissionXP. Each student completes a mission once.
func (s *Service) CompleteMission(ctx context.Context, tenantID, userID, missionID bson.ObjectID) (*Completion, error) {
	m, err := s.store.Missions.Get(ctx, tenantID, missionID)
	if err != nil {
		return nil, err
	}
	if !m.allows(userID) {
		return nil, ErrMissionNotAllowed
	}
	if _, err := s.store.Students.Get(ctx, tenantID, userID); err != nil {
		return nil, err
	}

	var st *Student
	err = s.store.Tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if st, err = s.store.Students.Reward(ctx, tenantID, userID, m.Coins, MissionXP, missionID); err != nil {
			return err
		}
		return s.store.Missions.MarkCompleted(ctx, tenantID, missionID, userID)
	})
	if err != nil {
		return nil, err
	}
	m.CompletedBy = append(m.CompletedBy, userID)
	s.logger.InfoContext(ctx, "mission completed",
		logger.TenantID(tenantID.Hex()),
		logger.UserID(userID.Hex()),
		logger.Resource("mission"))
	return &Completion{Student: st, Mission: m, NewLevel: st.Level()}, nil
}
