package repository

import (
	"fmt"
	"strings"

	"github.com/iliyamo/member-directory/internal/model"
)

type fieldBinding struct {
	column string
	ptr    **string
}

// fieldBindings pairs every optional profile column with its struct field.
// The order matches database.ProfileFieldColumns followed by about.
func fieldBindings(f *model.ProfileFields) []fieldBinding {
	return []fieldBinding{
		{"first_name", &f.FirstName},
		{"last_name", &f.LastName},
		{"gender", &f.Gender},
		{"date_of_birth", &f.DateOfBirth},
		{"time_of_birth", &f.TimeOfBirth},
		{"place_of_birth", &f.PlaceOfBirth},
		{"marital_status", &f.MaritalStatus},
		{"height", &f.Height},
		{"religion", &f.Religion},
		{"caste", &f.Caste},
		{"gotra", &f.Gotra},
		{"rashi", &f.Rashi},
		{"nakshatra", &f.Nakshatra},
		{"mother_tongue", &f.MotherTongue},
		{"education", &f.Education},
		{"occupation", &f.Occupation},
		{"annual_income", &f.AnnualIncome},
		{"city", &f.City},
		{"state", &f.State},
		{"country", &f.Country},
		{"father_name", &f.FatherName},
		{"father_occupation", &f.FatherOccupation},
		{"mother_name", &f.MotherName},
		{"mother_occupation", &f.MotherOccupation},
		{"about", &f.About},
	}
}

func photoColumn(slot int, kind string) string {
	return fmt.Sprintf("photo%d_%s", slot+1, kind)
}

// nullJSON keeps an empty document NULL instead of writing a zero-length value.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var profileSelect = buildProfileSelect()

func buildProfileSelect() string {
	cols := []string{
		"id", "email", "phone", "alt_phone", "password_hash", "role", "moderation_status",
		"reset_token_hash", "reset_expires_at", "verification_token_hash", "verified_at",
	}
	for _, b := range fieldBindings(&model.ProfileFields{}) {
		cols = append(cols, b.column)
	}
	cols = append(cols, "siblings")
	for i := 0; i < model.PhotoSlots; i++ {
		cols = append(cols, photoColumn(i, "blob")+" IS NOT NULL", photoColumn(i, "url"), photoColumn(i, "ref"))
	}
	cols = append(cols, "created_at", "updated_at")
	return "SELECT " + strings.Join(cols, ",") + " FROM profiles"
}
