package school

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Rank orders the leaderboard.
type Rank string

const (
	RankCoins Rank = "coins"
	RankXP    Rank = "xp"
)

// Students stores learners. Every lookup is confined to tenantID.
type Students interface {
	Insert(ctx context.Context, s *Student) error
	Get(ctx context.Context, tenantID, id bson.ObjectID) (*Student, error)
	List(ctx context.Context, tenantID, classID bson.ObjectID) ([]Student, error)
	Update(ctx context.Context, s *Student) error
	Delete(ctx context.Context, tenantID, id bson.ObjectID) error
	Count(ctx context.Context, tenantID bson.ObjectID) (int64, error)
	CountIDs(ctx context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (int64, error)
	Ranking(ctx context.Context, tenantID bson.ObjectID, by Rank, limit int64) ([]Student, error)
	// Reward adds coins and xp. A non-zero missionID is recorded as
	// completed and fails with ErrMissionCompleted when it already is.
	Reward(ctx context.Context, tenantID, id bson.ObjectID, coins, xp int64, missionID bson.ObjectID) (*Student, error)
	// Debit removes amount coins, failing with ErrInsufficientCoins rather
	// than going negative.
	Debit(ctx context.Context, tenantID, id bson.ObjectID, amount int64) error
	ClearClass(ctx context.Context, tenantID, classID bson.ObjectID) error
}

// Classes stores classes and their rosters.
type Classes interface {
	Insert(ctx context.Context, c *Class) error
	Get(ctx context.Context, tenantID, id bson.ObjectID) (*Class, error)
	List(ctx context.Context, tenantID bson.ObjectID) ([]Class, error)
	Update(ctx context.Context, c *Class) error
	Delete(ctx context.Context, tenantID, id bson.ObjectID) error
	Count(ctx context.Context, tenantID bson.ObjectID) (int64, error)
	CountIDs(ctx context.Context, tenantID bson.ObjectID, ids []bson.ObjectID) (int64, error)
	AddStudent(ctx context.Context, tenantID, classID, studentID bson.ObjectID) error
	RemoveStudent(ctx context.Context, tenantID, classID, studentID bson.ObjectID) error
}

type Missions interface {
	Insert(ctx context.Context, m *Mission) error
	Get(ctx context.Context, tenantID, id bson.ObjectID) (*Mission, error)
	List(ctx context.Context, tenantID, classID bson.ObjectID) ([]Mission, error)
	Update(ctx context.Context, m *Mission) error
	Delete(ctx context.Context, tenantID, id bson.ObjectID) error
	Count(ctx context.Context, tenantID bson.ObjectID) (int64, error)
	Allow(ctx context.Context, tenantID, id bson.ObjectID, userIDs []bson.ObjectID) error
	MarkCompleted(ctx context.Context, tenantID, id, userID bson.ObjectID) error
}

type Attitudes interface {
	Insert(ctx context.Context, a *Attitude) error
	Get(ctx context.Context, tenantID, id bson.ObjectID) (*Attitude, error)
	List(ctx context.Context, tenantID bson.ObjectID) ([]Attitude, error)
	Update(ctx context.Context, a *Attitude) error
	Delete(ctx context.Context, tenantID, id bson.ObjectID) error
	Count(ctx context.Context, tenantID bson.ObjectID) (int64, error)
}

type Assignments interface {
	Insert(ctx context.Context, a *Assignment) error
	// Find prefers an unclaimed assignment of the attitude to the student.
	Find(ctx context.Context, tenantID, attitudeID, userID bson.ObjectID) (*Assignment, error)
	ListByUser(ctx context.Context, tenantID, userID bson.ObjectID) ([]Assignment, error)
	// Claim flips an unclaimed assignment, failing with ErrAlreadyClaimed.
	Claim(ctx context.Context, tenantID, id bson.ObjectID, at time.Time) error
	DeleteByAttitude(ctx context.Context, tenantID, attitudeID bson.ObjectID) error
}

type Products interface {
	Insert(ctx context.Context, p *Product) error
	Get(ctx context.Context, tenantID, id bson.ObjectID) (*Product, error)
	List(ctx context.Context, tenantID, classID bson.ObjectID) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, tenantID, id bson.ObjectID) error
	Count(ctx context.Context, tenantID bson.ObjectID) (int64, error)
	CountInStock(ctx context.Context, tenantID bson.ObjectID) (int64, error)
	// DecrementStock takes one unit, failing with ErrOutOfStock.
	DecrementStock(ctx context.Context, tenantID, id bson.ObjectID) error
}

type Purchases interface {
	Insert(ctx context.Context, p *Purchase) error
	ListPending(ctx context.Context, tenantID bson.ObjectID) ([]Purchase, error)
	CountPending(ctx context.Context, tenantID bson.ObjectID) (int64, error)
	CountFor(ctx context.Context, tenantID, userID, productID bson.ObjectID) (int64, error)
	// Deliver marks a pending purchase delivered, failing with
	// ErrAlreadyDelivered.
	Deliver(ctx context.Context, tenantID, id bson.ObjectID, at time.Time) (*Purchase, error)
}

// Transactor runs fn atomically. Repository calls made with the context
// passed to fn take part in the transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories the service works with.
type Store struct {
	Students    Students
	Classes     Classes
	Missions    Missions
	Attitudes   Attitudes
	Assignments Assignments
	Products    Products
	Purchases   Purchases
	Tx          Transactor
}
