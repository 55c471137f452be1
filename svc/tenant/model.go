package tenant

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/limits"
	"github.com/dmitrymomot/leveledu/pkg/tenant"
)

// Collection is the tenants collection name.
const Collection = "tenants"

// Tenant is a school using the platform.
type Tenant struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string        `bson:"name" json:"name"`
	Subdomain    string        `bson:"subdomain" json:"subdomain"`
	CustomDomain string        `bson:"customDomain,omitempty" json:"customDomain,omitempty"`
	Status       tenant.Status `bson:"status" json:"status"`
	Plan         PlanInfo      `bson:"plan" json:"plan"`
	Branding     Branding      `bson:"branding" json:"branding"`
	Billing      Billing       `bson:"billing" json:"billing"`
	Contact      Contact       `bson:"contact" json:"contact"`
	Settings     Settings      `bson:"settings" json:"settings"`
	Stats        Stats         `bson:"stats" json:"stats"`
	Metadata     Metadata      `bson:"metadata" json:"metadata"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// PlanInfo is the plan snapshot stored on the tenant.
type PlanInfo struct {
	Type        string        `bson:"type" json:"type"`
	Limits      limits.Limits `bson:"limits" json:"limits"`
	TrialEndsAt *time.Time    `bson:"trialEndsAt,omitempty" json:"trialEndsAt,omitempty"`
}

type Branding struct {
	Logo           string `bson:"logo,omitempty" json:"logo,omitempty"`
	PrimaryColor   string `bson:"primaryColor" json:"primaryColor"`
	SecondaryColor string `bson:"secondaryColor" json:"secondaryColor"`
	AccentColor    string `bson:"accentColor" json:"accentColor"`
	Favicon        string `bson:"favicon,omitempty" json:"favicon,omitempty"`
	CustomCSS      string `bson:"customCSS,omitempty" json:"customCSS,omitempty"`
}

// Billing mirrors the tenant's Stripe state.
type Billing struct {
	CustomerID         string     `bson:"customerId,omitempty" json:"customerId,omitempty"`
	SubscriptionID     string     `bson:"subscriptionId,omitempty" json:"subscriptionId,omitempty"`
	SubscriptionStatus string     `bson:"subscriptionStatus,omitempty" json:"subscriptionStatus,omitempty"`
	CurrentPeriodStart *time.Time `bson:"currentPeriodStart,omitempty" json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `bson:"currentPeriodEnd,omitempty" json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `bson:"cancelAtPeriodEnd" json:"cancelAtPeriodEnd"`
}

type Contact struct {
	AdminEmail string `bson:"adminEmail,omitempty" json:"adminEmail,omitempty"`
	AdminName  string `bson:"adminName,omitempty" json:"adminName,omitempty"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Address    string `bson:"address,omitempty" json:"address,omitempty"`
}

type Settings struct {
	Timezone                 string `bson:"timezone" json:"timezone"`
	Language                 string `bson:"language" json:"language"`
	Currency                 string `bson:"currency" json:"currency"`
	AllowStudentRegistration bool   `bson:"allowStudentRegistration" json:"allowStudentRegistration"`
	RequireEmailVerification bool   `bson:"requireEmailVerification" json:"requireEmailVerification"`
}

type Stats struct {
	TotalUsers    int64      `bson:"totalUsers" json:"totalUsers"`
	TotalClasses  int64      `bson:"totalClasses" json:"totalClasses"`
	TotalMissions int64      `bson:"totalMissions" json:"totalMissions"`
	LastActivity  *time.Time `bson:"lastActivity,omitempty" json:"lastActivity,omitempty"`
}

// Metadata holds operator-facing fields. Notes and the suspension reason
// are never exposed by the public endpoints.
type Metadata struct {
	OnboardingCompleted bool   `bson:"onboardingCompleted" json:"onboardingCompleted"`
	Source              string `bson:"source,omitempty" json:"source,omitempty"`
	Notes               string `bson:"notes,omitempty" json:"notes,omitempty"`
	SuspensionReason    string `bson:"suspensionReason,omitempty" json:"suspensionReason,omitempty"`
}

// DefaultSettings are applied to new tenants.
func DefaultSettings() Settings {
	return Settings{
		Timezone: "America/Sao_Paulo",
		Language: "pt-BR",
		Currency: "BRL",
	}
}

// DefaultBranding are applied to new tenants.
func DefaultBranding() Branding {
	return Branding{
		PrimaryColor:   "#667EEA",
		SecondaryColor: "#764BA2",
		AccentColor:    "#F093FB",
	}
}

// Info returns the request-scoped view used by the tenant middleware.
func (t *Tenant) Info() *tenant.Info {
	return &tenant.Info{
		ID:        t.ID,
		Subdomain: t.Subdomain,
		Name:      t.Name,
		Status:    t.Status,
		Plan:      t.Plan.Type,
	}
}

// PublicView is what unauthenticated clients may see.
type PublicView struct {
	ID        bson.ObjectID `json:"id"`
	Name      string        `json:"name"`
	Subdomain string        `json:"subdomain"`
	Branding  Branding      `json:"branding"`
	Settings  Settings      `json:"settings"`
	Plan      string        `json:"plan"`
}

// Public returns the public view of t.
func (t *Tenant) Public() PublicView {
	return PublicView{
		ID:        t.ID,
		Name:      t.Name,
		Subdomain: t.Subdomain,
		Branding:  t.Branding,
		Settings:  t.Settings,
		Plan:      t.Plan.Type,
	}
}
