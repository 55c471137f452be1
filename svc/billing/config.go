package billing

import "strings"

// Config holds billing settings. Price IDs map Stripe prices back to plans.
type Config struct {
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	TrialDays   int64  `env:"STRIPE_TRIAL_DAYS" envDefault:"0"`

	StarterMonthly       string `env:"STRIPE_STARTER_PRICE_MONTHLY"`
	StarterYearly        string `env:"STRIPE_STARTER_PRICE_YEARLY"`
	ProfessionalMonthly  string `env:"STRIPE_PROFESSIONAL_PRICE_MONTHLY"`
	ProfessionalYearly   string `env:"STRIPE_PROFESSIONAL_PRICE_YEARLY"`
	GrowthMonthly        string `env:"STRIPE_GROWTH_PRICE_MONTHLY"`
	GrowthYearly         string `env:"STRIPE_GROWTH_PRICE_YEARLY"`
	InstitutionalMonthly string `env:"STRIPE_INSTITUTIONAL_PRICE_MONTHLY"`
	InstitutionalYearly  string `env:"STRIPE_INSTITUTIONAL_PRICE_YEARLY"`
	EnterpriseMonthly    string `env:"STRIPE_ENTERPRISE_PRICE_MONTHLY"`
	EnterpriseYearly     string `env:"STRIPE_ENTERPRISE_PRICE_YEARLY"`
}

// Prices builds the price table from the configured IDs.
func (c Config) Prices() *PriceTable {
	return NewPriceTable(
		Price{Plan: "starter", Interval: Monthly, ID: c.StarterMonthly},
		Price{Plan: "starter", Interval: Yearly, ID: c.StarterYearly},
		Price{Plan: "professional", Interval: Monthly, ID: c.ProfessionalMonthly},
		Price{Plan: "professional", Interval: Yearly, ID: c.ProfessionalYearly},
		Price{Plan: "growth", Interval: Monthly, ID: c.GrowthMonthly},
		Price{Plan: "growth", Interval: Yearly, ID: c.GrowthYearly},
		Price{Plan: "institutional", Interval: Monthly, ID: c.InstitutionalMonthly},
		Price{Plan: "institutional", Interval: Yearly, ID: c.InstitutionalYearly},
		Price{Plan: "enterprise", Interval: Monthly, ID: c.EnterpriseMonthly},
		Price{Plan: "enterprise", Interval: Yearly, ID: c.EnterpriseYearly},
	)
}

func (c Config) successURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/signup/success?session_id={CHECKOUT_SESSION_ID}"
}

func (c Config) cancelURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/pricing"
}

func (c Config) billingURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/admin/billing"
}

// LoginURL is the admin login page linked from account emails.
func (c Config) LoginURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/login"
}
