package school

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"
)

// RankEntry is one row of a leaderboard.
type RankEntry struct {
	ID    bson.ObjectID `json:"id"`
	Name  string        `json:"name"`
	Coins int64         `json:"coins"`
	XP    int64         `json:"xp"`
	Level int64         `json:"level"`
}

// Home is the admin dashboard summary.
type Home struct {
	TotalUsers            int64       `json:"totalUsers"`
	TotalMissions         int64       `json:"totalMissions"`
	TotalProducts         int64       `json:"totalProducts"`
	TotalPendingPurchases int64       `json:"totalPendingPurchases"`
	TopStudents           []RankEntry `json:"topStudents"`
}

// TopStudentsOnHome is the size of the dashboard leaderboard.
const TopStudentsOnHome = 3

// Home gathers the dashboard counters in parallel. Products count only
// when in stock.
func (s *Service) Home(ctx context.Context, tenantID bson.ObjectID) (*Home, error) {
	var h Home
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		h.TotalUsers, err = s.store.Students.Count(gctx, tenantID)
		return err
	})
	g.Go(func() (err error) {
		h.TotalMissions, err = s.store.Missions.Count(gctx, tenantID)
		return err
	})
	g.Go(func() (err error) {
		h.TotalProducts, err = s.store.Products.CountInStock(gctx, tenantID)
		return err
	})
	g.Go(func() (err error) {
		h.TotalPendingPurchases, err = s.store.Purchases.CountPending(gctx, tenantID)
		return err
	})
	g.Go(func() (err error) {
		h.TopStudents, err = s.ranking(gctx, tenantID, RankCoins, TopStudentsOnHome)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &h, nil
}

// Ranking orders all the tenant's students by coins or xp.
func (s *Service) Ranking(ctx context.Context, tenantID bson.ObjectID, by Rank) ([]RankEntry, error) {
	return s.ranking(ctx, tenantID, by, 0)
}

func (s *Service) ranking(ctx context.Context, tenantID bson.ObjectID, by Rank, limit int64) ([]RankEntry, error) {
	if by != RankXP {
		by = RankCoins
	}
	students, err := s.store.Students.Ranking(ctx, tenantID, by, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RankEntry, len(students))
	for i, st := range students {
		out[i] = RankEntry{ID: st.ID, Name: st.Name, Coins: st.Coins, XP: st.XP, Level: st.Level()}
	}
	return out, nil
}

// Login identifies a student scanned from its badge. The student must
// belong to tenantID.
func (s *Service) Login(ctx context.Context, tenantID, userID bson.ObjectID) (*Student, error) {
	return s.store.Students.Get(ctx, tenantID, userID)
}
