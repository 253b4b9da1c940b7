package models

import "time"

// Enumerations for profile fields. Stored as text; unknown values are
// sanitized to defaults before they reach the repository.
type (
	Risk       string
	Horizon    string
	BriefStyle string
	Experience string
)

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"

	HorizonDay   Horizon = "day"
	HorizonSwing Horizon = "swing"
	HorizonLong  Horizon = "long"

	BriefStyleBullet       BriefStyle = "bullet"
	BriefStyleNarrative    BriefStyle = "narrative"
	BriefStyleNumbersFirst BriefStyle = "numbers_first"

	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

// Profile holds a user's briefing preferences, one row per user.
// Created lazily with defaults on first read through the REST path.
type Profile struct {
	UserID        string     `json:"-" db:"user_id"`
	RiskTolerance Risk       `json:"riskTolerance" db:"risk_tolerance"`
	Horizon       Horizon    `json:"horizon" db:"horizon"`
	BriefStyle    BriefStyle `json:"briefStyle" db:"brief_style"`
	Experience    Experience `json:"experience" db:"experience"`
	Sectors       *string    `json:"sectors,omitempty" db:"sectors"`
	Constraints   *string    `json:"constraints,omitempty" db:"constraints"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// DefaultProfile returns the profile used before a user has saved anything.
func DefaultProfile(userID string) *Profile {
	now := time.Now()
	return &Profile{
		UserID:        userID,
		RiskTolerance: RiskMedium,
		Horizon:       HorizonLong,
		BriefStyle:    BriefStyleBullet,
		Experience:    ExperienceIntermediate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SanitizeProfileInput coerces free-form input onto the closed enum sets,
// falling back to the defaults for unknown values.
func SanitizeProfileInput(p *Profile) {
	switch p.RiskTolerance {
	case RiskLow, RiskMedium, RiskHigh:
	default:
		p.RiskTolerance = RiskMedium
	}
	switch p.Horizon {
	case HorizonDay, HorizonSwing, HorizonLong:
	default:
		p.Horizon = HorizonLong
	}
	switch p.BriefStyle {
	case BriefStyleBullet, BriefStyleNarrative, BriefStyleNumbersFirst:
	default:
		p.BriefStyle = BriefStyleBullet
	}
	switch p.Experience {
	case ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced:
	default:
		p.Experience = ExperienceIntermediate
	}
	p.Sectors = trimOptional(p.Sectors)
	p.Constraints = trimOptional(p.Constraints)
}
