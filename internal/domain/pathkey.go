package domain

import "time"

// BusinessDriver is one of the six business categories a question may be tagged with.
type BusinessDriver string

const (
	DriverPeople   BusinessDriver = "people"
	DriverProduct  BusinessDriver = "product"
	DriverPricing  BusinessDriver = "pricing"
	DriverProcess  BusinessDriver = "process"
	DriverProceeds BusinessDriver = "proceeds"
	DriverProfits  BusinessDriver = "profits"
)

// BusinessDrivers lists every driver that must be mastered for Section 3.
var BusinessDrivers = []BusinessDriver{
	DriverPeople,
	DriverProduct,
	DriverPricing,
	DriverProcess,
	DriverProceeds,
	DriverProfits,
}

// Valid reports whether d is one of the known drivers.
func (d BusinessDriver) Valid() bool {
	for _, known := range BusinessDrivers {
		if d == known {
			return true
		}
	}
	return false
}

// MasteryType is the Section 2 path a progress record counts toward.
type MasteryType string

const (
	MasteryIndustry MasteryType = "industry"
	MasteryCluster  MasteryType = "cluster"
)

// StudentPathkeyRecord holds the three unlock sections for one (student, career).
type StudentPathkeyRecord struct {
	StudentID string
	CareerID  string

	CareerMasteryUnlocked   bool
	CareerMasteryUnlockedAt *time.Time

	IndustryMasteryUnlocked bool
	ClusterMasteryUnlocked  bool
	SectionTwoUnlockedAt    *time.Time
	SectionTwoVia           MasteryType

	BusinessDriverMasteryUnlocked   bool
	BusinessDriverMasteryUnlockedAt *time.Time

	// Version is zero for a record that has never been stored.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SectionTwoUnlocked reports whether either Section 2 path has unlocked.
func (r StudentPathkeyRecord) SectionTwoUnlocked() bool {
	return r.IndustryMasteryUnlocked || r.ClusterMasteryUnlocked
}

// Validate enforces that Section 1 gates Sections 2 and 3.
func (r StudentPathkeyRecord) Validate() error {
	if r.CareerMasteryUnlocked {
		return nil
	}
	if r.SectionTwoUnlocked() || r.BusinessDriverMasteryUnlocked {
		return ErrGatingViolation
	}
	return nil
}

// SectionTwoProgress is one qualifying question-set completion.
type SectionTwoProgress struct {
	ID            string
	StudentID     string
	CareerID      string
	MasteryType   MasteryType
	QuestionSetID string
	Accuracy      float64
	CreatedAt     time.Time
}

// DriverState is the tracker state of one business driver.
type DriverState string

const (
	DriverAccruing DriverState = "accruing"
	DriverMastered DriverState = "mastered"
)

// BusinessDriverProgress is the rolling chunk for one (student, career, driver).
type BusinessDriverProgress struct {
	StudentID      string
	CareerID       string
	Driver         BusinessDriver
	ChunkQuestions int
	ChunkCorrect   int
	Mastered       bool
	MasteredAt     *time.Time
	Version        int64
	UpdatedAt      time.Time
}

// State maps the mastered flag onto the driver state machine.
func (p BusinessDriverProgress) State() DriverState {
	if p.Mastered {
		return DriverMastered
	}
	return DriverAccruing
}

// QuestionDriverContext ties a driver-tagged question to its career.
type QuestionDriverContext struct {
	QuestionID string
	Driver     BusinessDriver
	CareerID   string
}

// Pathkey is a collectible awarded for a career.
type Pathkey struct {
	ID       string `json:"id"`
	CareerID string `json:"careerId"`
	Name     string `json:"name"`
	Rarity   string `json:"rarity"`
}
