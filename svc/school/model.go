package school

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const (
	StudentsCollection    = "users"
	ClassesCollection     = "classes"
	MissionsCollection    = "missions"
	AttitudesCollection   = "attitudes"
	AssignmentsCollection = "attitude_assignments"
	ProductsCollection    = "products"
	PurchasesCollection   = "purchases"
)

// MissionXP is the experience granted for every completed mission.
const MissionXP = 100

// XPPerLevel is the experience needed for each level.
const XPPerLevel = 100

// Student is a gamified learner. Students have no credentials; the mobile
// app identifies them by the QR badge.
type Student struct {
	ID                bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID          bson.ObjectID   `bson:"tenantId" json:"tenantId"`
	Name              string          `bson:"name" json:"name"`
	ClassID           bson.ObjectID   `bson:"classId,omitempty" json:"classId,omitzero"`
	Coins             int64           `bson:"coins" json:"coins"`
	XP                int64           `bson:"xp" json:"xp"`
	CompletedMissions []bson.ObjectID `bson:"completedMissions" json:"completedMissions"`
	QRCode            string          `bson:"qrCode,omitempty" json:"qrCode,omitempty"`
	CreatedAt         time.Time       `bson:"createdAt" json:"createdAt"`
}

// Level is one level per XPPerLevel experience.
func (s *Student) Level() int64 { return s.XP / XPPerLevel }

func (s *Student) hasCompleted(missionID bson.ObjectID) bool {
	for _, id := range s.CompletedMissions {
		if id == missionID {
			return true
		}
	}
	return false
}

// Class groups students. Code is unique within a tenant.
type Class struct {
	ID        bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID  bson.ObjectID   `bson:"tenantId" json:"tenantId"`
	Name      string          `bson:"name" json:"name"`
	Code      string          `bson:"code" json:"code"`
	Students  []bson.ObjectID `bson:"students" json:"students"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
}

// Mission is a task a student completes for coins once an admin allowed
// them to.
type Mission struct {
	ID           bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID     bson.ObjectID   `bson:"tenantId" json:"tenantId"`
	ClassID      bson.ObjectID   `bson:"classId" json:"classId"`
	Title        string          `bson:"title" json:"title"`
	Description  string          `bson:"description" json:"description"`
	Coins        int64           `bson:"coins" json:"coins"`
	AllowedUsers []bson.ObjectID `bson:"allowedUsers" json:"allowedUsers"`
	CompletedBy  []bson.ObjectID `bson:"completedBy" json:"completedBy"`
	CreatedAt    time.Time       `bson:"createdAt" json:"createdAt"`
}

func (m *Mission) allows(userID bson.ObjectID) bool {
	for _, id := range m.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// AttitudeType tells rewarded behaviour from penalized behaviour.
type AttitudeType string

const (
	AttitudePositive AttitudeType = "positive"
	AttitudeNegative AttitudeType = "negative"
)

// Attitude is a behaviour teachers reward or penalize.
type Attitude struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    bson.ObjectID `bson:"tenantId" json:"tenantId"`
	ClassID     bson.ObjectID `bson:"classId" json:"classId"`
	Title       string        `bson:"title" json:"title"`
	Description string        `bson:"description" json:"description"`
	Type        AttitudeType  `bson:"type" json:"type"`
	Coins       int64         `bson:"coins" json:"coins"`
	XP          int64         `bson:"xp" json:"xp"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}

// Assignment links an attitude to a student until the student claims it.
type Assignment struct {
	ID         bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   bson.ObjectID `bson:"tenantId" json:"tenantId"`
	AttitudeID bson.ObjectID `bson:"attitudeId" json:"attitudeId"`
	UserID     bson.ObjectID `bson:"userId" json:"userId"`
	IsClaimed  bool          `bson:"isClaimed" json:"isClaimed"`
	ClaimedAt  *time.Time    `bson:"claimedAt,omitempty" json:"claimedAt,omitempty"`
	CreatedAt  time.Time     `bson:"createdAt" json:"createdAt"`
}

// Category is a store product category.
type Category string

const (
	CategoryMaterial    Category = "Material"
	CategoryExperiences Category = "Experiências"
	CategoryPrivileges  Category = "Privilégios"
)

// Product is an item students buy with coins.
type Product struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    bson.ObjectID `bson:"tenantId" json:"tenantId"`
	ClassID     bson.ObjectID `bson:"classId" json:"classId"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description" json:"description"`
	Price       int64         `bson:"price" json:"price"`
	Stock       int64         `bson:"stock" json:"stock"`
	MaxPerUser  int64         `bson:"maxPerUser" json:"maxPerUser"`
	Category    Category      `bson:"category" json:"category"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}

// Purchase is a bought product waiting for, or past, delivery.
type Purchase struct {
	ID          bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    bson.ObjectID `bson:"tenantId" json:"tenantId"`
	UserID      bson.ObjectID `bson:"userId" json:"userId"`
	ProductID   bson.ObjectID `bson:"productId" json:"productId"`
	Price       int64         `bson:"price" json:"price"`
	IsDelivered bool          `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt *time.Time    `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}

// Record keys, used by the generic repository helpers.
func (s Student) key() (bson.ObjectID, bson.ObjectID)    { return s.ID, s.TenantID }
func (c Class) key() (bson.ObjectID, bson.ObjectID)      { return c.ID, c.TenantID }
func (m Mission) key() (bson.ObjectID, bson.ObjectID)    { return m.ID, m.TenantID }
func (a Attitude) key() (bson.ObjectID, bson.ObjectID)   { return a.ID, a.TenantID }
func (a Assignment) key() (bson.ObjectID, bson.ObjectID) { return a.ID, a.TenantID }
func (p Product) key() (bson.ObjectID, bson.ObjectID)    { return p.ID, p.TenantID }
func (p Purchase) key() (bson.ObjectID, bson.ObjectID)   { return p.ID, p.TenantID }
