package services

import (
	"time"

	"github.com/jlpedu/enroll/internal/models"
)

// ApplyDerivedGrade recomputes the child's test grade and age group from the
// birth date. Called on every child create and update; the derived fields
// are never taken from client input.
func ApplyDerivedGrade(c *models.Child, now time.Time) {
	c.TestGrade = GradeForBirthDate(c.BirthDate, now)
	c.AgeGroup = AgeGroupForGrade(c.TestGrade)
}
