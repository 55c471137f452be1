package limits

// Resource is a countable tenant resource.
type Resource string

const (
	ResourceStudent  Resource = "student"
	ResourceTeacher  Resource = "teacher"
	ResourceAdmin    Resource = "admin"
	ResourceClass    Resource = "class"
	ResourceMission  Resource = "mission"
	ResourceProduct  Resource = "product"
	ResourceAttitude Resource = "attitude"
)

// Resources lists every resource in reporting order.
var Resources = []Resource{
	ResourceStudent,
	ResourceTeacher,
	ResourceAdmin,
	ResourceClass,
	ResourceMission,
	ResourceProduct,
	ResourceAttitude,
}

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	_, ok := limitFields[r]
	return ok
}

// Feature is a plan feature flag.
type Feature string

const (
	FeatureCustomBranding  Feature = "customBranding"
	FeatureAPIAccess       Feature = "apiAccess"
	FeatureAdvancedReports Feature = "advancedReports"
	FeatureCustomDomain    Feature = "customDomain"
)

// Unlimited marks a resource without a ceiling.
const Unlimited int64 = -1

// Limits are the resource ceilings of a plan.
type Limits struct {
	Students  int64 `yaml:"students" json:"maxStudents"`
	Teachers  int64 `yaml:"teachers" json:"maxTeachers"`
	Admins    int64 `yaml:"admins" json:"maxAdmins"`
	Classes   int64 `yaml:"classes" json:"maxClasses"`
	Missions  int64 `yaml:"missions" json:"maxMissions"`
	Products  int64 `yaml:"products" json:"maxProducts"`
	Attitudes int64 `yaml:"attitudes" json:"maxAttitudes"`
}

var limitFields = map[Resource]func(*Limits) int64{
	ResourceStudent:  func(l *Limits) int64 { return l.Students },
	ResourceTeacher:  func(l *Limits) int64 { return l.Teachers },
	ResourceAdmin:    func(l *Limits) int64 { return l.Admins },
	ResourceClass:    func(l *Limits) int64 { return l.Classes },
	ResourceMission:  func(l *Limits) int64 { return l.Missions },
	ResourceProduct:  func(l *Limits) int64 { return l.Products },
	ResourceAttitude: func(l *Limits) int64 { return l.Attitudes },
}

// For returns the ceiling for res.
func (l Limits) For(res Resource) (int64, bool) {
	get, ok := limitFields[res]
	if !ok {
		return 0, false
	}
	return get(&l), true
}

// UsageInfo is the current usage and ceiling of one resource.
type UsageInfo struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// Percentage returns usage as 0-100, or -1 for unlimited resources.
func (u UsageInfo) Percentage() int {
	switch {
	case u.Limit == Unlimited:
		return -1
	case u.Limit <= 0:
		return 100
	}
	return int(min((u.Current*100)/u.Limit, 100))
}
