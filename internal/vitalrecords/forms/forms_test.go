package forms

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddrc/internal/vitalrecords/models"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRequest(t *testing.T, rt models.RecordType) *models.Request {
	t.Helper()
	r, err := models.NewRequest(uuid.New(), "eaton", now)
	require.NoError(t, err)
	r.Type = rt
	return r
}

func TestEligibility(t *testing.T) {
	f := Eligibility()
	assert.True(t, f.Bind(url.Values{"fire": {"palisades"}}))
	assert.False(t, f.Bind(url.Values{"fire": {"camp"}}))
	assert.Equal(t, "Select a valid choice.", f.Field("fire").Error)
	assert.False(t, f.Bind(url.Values{}))
	assert.Equal(t, "This field is required.", f.Field("fire").Error)
}

func TestTypeApplies(t *testing.T) {
	r := newRequest(t, "")
	f := Type(r)
	require.True(t, f.Bind(url.Values{"type": {"death"}}))
	f.Apply(r)
	assert.Equal(t, models.TypeDeath, r.Type)

	assert.False(t, Type(r).Bind(url.Values{"type": {""}}))
}

func TestStatement(t *testing.T) {
	t.Run("relationship depends on type", func(t *testing.T) {
		death := newRequest(t, models.TypeDeath)
		assert.False(t, Statement(death).Bind(url.Values{"relationship": {"self"}, "legal_attestation": {"Jo Doe"}}))
		assert.True(t, Statement(death).Bind(url.Values{"relationship": {"surviving_next_of_kin"}, "legal_attestation": {"Jo Doe"}}))

		birth := newRequest(t, models.TypeBirth)
		assert.True(t, Statement(birth).Bind(url.Values{"relationship": {"self"}, "legal_attestation": {"Jo Doe"}}))
	})

	t.Run("attestation length capped", func(t *testing.T) {
		r := newRequest(t, models.TypeBirth)
		f := Statement(r)
		assert.True(t, f.Bind(url.Values{"relationship": {"parent"}, "legal_attestation": {strings.Repeat("a", 386)}}))
		assert.False(t, f.Bind(url.Values{"relationship": {"parent"}, "legal_attestation": {strings.Repeat("a", 387)}}))
		assert.NotEmpty(t, f.Field("legal_attestation").Error)
	})

	t.Run("prefills and applies", func(t *testing.T) {
		r := newRequest(t, models.TypeBirth)
		r.Relationship = "child"
		f := Statement(r)
		assert.Equal(t, "child", f.Value("relationship"))
		require.True(t, f.Bind(url.Values{"relationship": {"sibling"}, "legal_attestation": {" Jo Doe "}}))
		f.Apply(r)
		assert.Equal(t, "sibling", r.Relationship)
		assert.Equal(t, "Jo Doe", r.LegalAttestation)
	})
}

func TestNameForms(t *testing.T) {
	t.Run("birth middle name optional", func(t *testing.T) {
		r := newRequest(t, models.TypeBirth)
		f := Name(r)
		assert.Equal(t, "First name at birth", f.Field("first_name").Label)
		require.True(t, f.Bind(url.Values{"first_name": {"Ada"}, "last_name": {"King"}}))
		f.Apply(r)
		assert.Equal(t, "Ada", r.FirstName)
		assert.Empty(t, r.MiddleName)
	})

	t.Run("marriage needs both spouses", func(t *testing.T) {
		r := newRequest(t, models.TypeMarriage)
		f := Name(r)
		vals := url.Values{
			"person_1_first_name": {"A"}, "person_1_last_name": {"B"}, "person_1_birth_last_name": {"C"},
			"person_2_first_name": {"D"}, "person_2_last_name": {"E"},
		}
		assert.False(t, f.Bind(vals))
		assert.NotEmpty(t, f.Field("person_2_birth_last_name").Error)

		vals.Set("person_2_birth_last_name", "F")
		require.True(t, f.Bind(vals))
		f.Apply(r)
		assert.Equal(t, "F", r.Person2BirthLastName)
	})
}

func TestCounty(t *testing.T) {
	r := newRequest(t, models.TypeDeath)
	f := County(r)
	assert.Equal(t, "County of death", f.Field("county_of_event").Label)
	assert.False(t, f.Bind(url.Values{"county_of_event": {"Cook"}}))
	require.True(t, f.Bind(url.Values{"county_of_event": {"Los Angeles"}}))
	f.Apply(r)
	assert.Equal(t, "Los Angeles", r.CountyOfEvent)
}

func TestDates(t *testing.T) {
	tests := []struct {
		name         string
		month, day   string
		year         string
		ok           bool
		errorMessage string
	}{
		{"valid", "7", "4", "1980", true, ""},
		{"feb 30", "2", "30", "1990", false, "Enter a valid date."},
		{"leap day", "2", "29", "2024", true, ""},
		{"two digit year", "1", "1", "80", false, "Enter a valid four-digit year."},
		{"future", "12", "31", "2025", false, "The date cannot be in the future."},
		{"bad month", "13", "1", "2000", false, "Select a valid choice."},
		{"bad day", "1", "0", "2000", false, "Enter a valid day."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRequest(t, models.TypeBirth)
			f := EventDate(r, now)
			ok := f.Bind(url.Values{"month": {tc.month}, "day": {tc.day}, "year": {tc.year}})
			assert.Equal(t, tc.ok, ok)
			if !tc.ok {
				msgs := append([]string{}, f.Errors...)
				for _, fld := range f.Fields {
					if fld.Error != "" {
						msgs = append(msgs, fld.Error)
					}
				}
				assert.Contains(t, msgs, tc.errorMessage)
			}
		})
	}

	t.Run("applies to the right field", func(t *testing.T) {
		r := newRequest(t, models.TypeDeath)
		f := BirthDate(r, now)
		require.True(t, f.Bind(url.Values{"month": {"3"}, "day": {"9"}, "year": {"1941"}}))
		f.Apply(r)
		require.NotNil(t, r.DateOfBirth)
		assert.Nil(t, r.DateOfEvent)
		assert.Equal(t, time.Date(1941, 3, 9, 0, 0, 0, 0, time.UTC), *r.DateOfBirth)

		again := BirthDate(r, now)
		assert.Equal(t, "3", again.Value("month"))
		assert.Equal(t, "1941", again.Value("year"))
	})
}

func TestParents(t *testing.T) {
	r := newRequest(t, models.TypeBirth)
	f := Parents(r)
	require.True(t, f.Bind(url.Values{"person_1_first_name": {"Mo"}, "person_1_last_name": {"Smith"}}))
	f.Apply(r)
	assert.Equal(t, "Mo", r.Person1FirstName)
	assert.Empty(t, r.Person2FirstName)

	d := newRequest(t, models.TypeDeath)
	p := Parent(d)
	assert.False(t, p.Bind(url.Values{"person_1_first_name": {"Mo"}}))
}

func validOrder() url.Values {
	return url.Values{
		"number_of_records": {"2"},
		"order_first_name":  {"Jo"},
		"order_last_name":   {"Doe"},
		"address":           {"1 Main St"},
		"city":              {"Sacramento"},
		"state":             {"CA"},
		"zip_code":          {"95814"},
		"email_address":     {"jo@example.com"},
		"phone_number":      {"9165551234"},
	}
}

func TestOrder(t *testing.T) {
	t.Run("valid order applies", func(t *testing.T) {
		r := newRequest(t, models.TypeBirth)
		f := Order(r, "")
		require.True(t, f.Bind(validOrder()))
		f.Apply(r)
		assert.Equal(t, 2, r.NumberOfRecords)
		assert.Equal(t, "95814", r.ZipCode)
		assert.Equal(t, "9165551234", r.PhoneNumber)
	})

	invalid := map[string][2]string{
		"zip too short":       {"zip_code", "9581"},
		"zip bad suffix":      {"zip_code", "95814-12"},
		"phone with dashes":   {"phone_number", "916-555-12"},
		"phone too short":     {"phone_number", "916555123"},
		"bad email":           {"email_address", "jo-at-example"},
		"too many records":    {"number_of_records", "11"},
		"state not a choice":  {"state", "ZZ"},
		"missing street addr": {"address", ""},
	}
	for name, kv := range invalid {
		t.Run(name, func(t *testing.T) {
			vals := validOrder()
			vals.Set(kv[0], kv[1])
			f := Order(newRequest(t, models.TypeBirth), "")
			assert.False(t, f.Bind(vals))
			assert.NotEmpty(t, f.Field(kv[0]).Error)
		})
	}

	t.Run("zip plus four accepted", func(t *testing.T) {
		vals := validOrder()
		vals.Set("zip_code", "95814-1234")
		assert.True(t, Order(newRequest(t, models.TypeBirth), "").Bind(vals))
	})

	t.Run("verified email prefill", func(t *testing.T) {
		r := newRequest(t, models.TypeBirth)
		assert.Equal(t, "v@example.com", Order(r, "v@example.com").Value("email_address"))
		r.EmailAddress = "mine@example.com"
		assert.Equal(t, "mine@example.com", Order(r, "v@example.com").Value("email_address"))
		assert.Equal(t, "1", Order(r, "").Value("number_of_records"))
	})
}

func TestSubmitAddError(t *testing.T) {
	f := Submit()
	assert.True(t, f.Bind(url.Values{}))
	f.AddError("This request has already been submitted.")
	assert.False(t, f.Valid())
}
