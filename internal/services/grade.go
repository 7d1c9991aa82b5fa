package services

import (
	"fmt"
	"time"
)

// Age groups, coarser than test grades.
const (
	AgeGroupKindergarten = "Kindergarten"
	AgeGroupElementary   = "Elementary"
	AgeGroupMiddle       = "Middle School"
)

// TestGrades lists every valid grade tier, youngest first.
var TestGrades = []string{
	"5 Year Old",
	"6 Year Old",
	"7 Year Old",
	"1st Grade",
	"2nd Grade",
	"3rd Grade",
	"4th Grade",
	"5th Grade",
	"6th Grade",
	"7th Grade",
	"8th Grade",
}

// Test fee per grade. Grades not listed fall back to defaultPrice.
// Owned by configuration; read-only to the booking services.
var priceTable = map[string]int{
	"5 Year Old": 10000,
	"6 Year Old": 15000,
	"7 Year Old": 15000,
}

const defaultPrice = 20000

// PriceForGrade returns the test fee for a grade, with a default tier for
// anything unmapped.
func PriceForGrade(grade string) int {
	if p, ok := priceTable[grade]; ok {
		return p
	}
	return defaultPrice
}

// GradeForBirthDate derives the test grade from a birth date. Grades use
// Korean reckoning: calendar years since birth plus one, clamped to the
// youngest and oldest tiers.
func GradeForBirthDate(birth, now time.Time) string {
	age := now.Year() - birth.Year() + 1
	switch {
	case age <= 5:
		return "5 Year Old"
	case age == 6:
		return "6 Year Old"
	case age == 7:
		return "7 Year Old"
	case age <= 13:
		return ordinal(age-7) + " Grade" // ages 8..13 -> 1st..6th Grade
	case age == 14:
		return "7th Grade"
	default:
		return "8th Grade"
	}
}

// AgeGroupForGrade maps a test grade onto its coarse age group.
func AgeGroupForGrade(grade string) string {
	switch grade {
	case "5 Year Old", "6 Year Old", "7 Year Old":
		return AgeGroupKindergarten
	case "7th Grade", "8th Grade":
		return AgeGroupMiddle
	default:
		return AgeGroupElementary
	}
}

// ValidTestGrade reports whether grade is one of the known tiers.
func ValidTestGrade(grade string) bool {
	for _, g := range TestGrades {
		if g == grade {
			return true
		}
	}
	return false
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	default:
		return fmt.Sprintf("%dth", n)
	}
}
