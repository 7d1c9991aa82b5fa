package services

import (
	"testing"
	"time"
)

func TestGradeForBirthDate(t *testing.T) {
	now := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		birthYear int
		want      string
	}{
		{2024, "5 Year Old"}, // age 3, clamped to youngest tier
		{2022, "5 Year Old"},
		{2021, "6 Year Old"},
		{2020, "7 Year Old"},
		{2019, "1st Grade"},
		{2018, "2nd Grade"},
		{2017, "3rd Grade"},
		{2014, "6th Grade"},
		{2013, "7th Grade"},
		{2012, "8th Grade"},
		{2005, "8th Grade"}, // clamped to oldest tier
	}
	for _, c := range cases {
		birth := time.Date(c.birthYear, 6, 15, 0, 0, 0, 0, time.UTC)
		if got := GradeForBirthDate(birth, now); got != c.want {
			t.Errorf("birth year %d: got %q, want %q", c.birthYear, got, c.want)
		}
	}
}

func TestPriceForGrade(t *testing.T) {
	cases := []struct {
		grade string
		want  int
	}{
		{"5 Year Old", 10000},
		{"6 Year Old", 15000},
		{"7 Year Old", 15000},
		{"1st Grade", 20000},
		{"8th Grade", 20000},
		{"not a grade", 20000}, // default tier
	}
	for _, c := range cases {
		if got := PriceForGrade(c.grade); got != c.want {
			t.Errorf("PriceForGrade(%q) = %d, want %d", c.grade, got, c.want)
		}
	}
}

func TestAgeGroupForGrade(t *testing.T) {
	cases := []struct {
		grade string
		want  string
	}{
		{"5 Year Old", AgeGroupKindergarten},
		{"7 Year Old", AgeGroupKindergarten},
		{"1st Grade", AgeGroupElementary},
		{"6th Grade", AgeGroupElementary},
		{"7th Grade", AgeGroupMiddle},
		{"8th Grade", AgeGroupMiddle},
	}
	for _, c := range cases {
		if got := AgeGroupForGrade(c.grade); got != c.want {
			t.Errorf("AgeGroupForGrade(%q) = %q, want %q", c.grade, got, c.want)
		}
	}
}

func TestValidTestGrade(t *testing.T) {
	if !ValidTestGrade("3rd Grade") {
		t.Error("3rd Grade should be valid")
	}
	if ValidTestGrade("9th Grade") {
		t.Error("9th Grade should not be valid")
	}
}

func TestNormPhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"010-1234-5678", "01012345678"},
		{"+82 10 1234 5678", "01012345678"},
		{"821012345678", "01012345678"},
		{"01012345678", "01012345678"},
		{"12345", ""},       // too short
		{"21012345678", ""}, // does not start with 0
	}
	for _, c := range cases {
		if got := NormPhone(c.in); got != c.want {
			t.Errorf("NormPhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
