package forms

import (
	"regexp"
	"strconv"
	"time"

	"ddrc/internal/vitalrecords/models"
)

const maxAttestation = 386

var (
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
)

// Eligibility asks which fire the user was impacted by.
func Eligibility() *Form {
	return &Form{
		Fields: []*Field{selectField("fire", "Please confirm the fire you were impacted by", models.FireChoices)},
	}
}

// Type selects the record type.
func Type(r *models.Request) *Form {
	f := &Form{
		Fields: []*Field{selectField("type", "Select record type", models.TypeChoices)},
		apply: func(f *Form, r *models.Request) {
			r.Type = models.RecordType(f.Value("type"))
		},
	}
	f.Field("type").Value = string(r.Type)
	return f
}

// Statement is the sworn statement: relationship plus typed signature.
func Statement(r *models.Request) *Form {
	attestation := &Field{Name: "legal_attestation", Label: "Type your full name to sign", Kind: KindText, Required: true, MaxLength: maxAttestation}
	f := &Form{
		Fields: []*Field{
			selectField("relationship", "Select your relationship", models.RelationshipChoices(r.Type)),
			attestation,
		},
		apply: func(f *Form, r *models.Request) {
			r.Relationship = f.Value("relationship")
			r.LegalAttestation = f.Value("legal_attestation")
		},
	}
	f.Field("relationship").Value = r.Relationship
	attestation.Value = r.LegalAttestation
	return f
}

// Name collects the registrant name, or both spouses for marriage records.
func Name(r *models.Request) *Form {
	if r.Type == models.TypeMarriage {
		return marriageName(r)
	}
	firstLabel, middleLabel := "First name", "Middle name"
	if r.Type == models.TypeBirth {
		firstLabel, middleLabel = "First name at birth", "Middle name at birth"
	}
	f := &Form{
		Fields: []*Field{
			text("first_name", firstLabel, true),
			text("middle_name", middleLabel, false),
			text("last_name", "Last name at birth", true),
		},
		apply: func(f *Form, r *models.Request) {
			r.FirstName = f.Value("first_name")
			r.MiddleName = f.Value("middle_name")
			r.LastName = f.Value("last_name")
		},
	}
	prefill(f, map[string]string{
		"first_name":  r.FirstName,
		"middle_name": r.MiddleName,
		"last_name":   r.LastName,
	})
	return f
}

func marriageName(r *models.Request) *Form {
	f := &Form{
		Fields: []*Field{
			text("person_1_first_name", "First name", true),
			text("person_1_middle_name", "Middle name", false),
			text("person_1_last_name", "Current last name", true),
			text("person_1_birth_last_name", "Last name at birth", true),
			text("person_2_first_name", "First name", true),
			text("person_2_middle_name", "Middle name", false),
			text("person_2_last_name", "Current last name", true),
			text("person_2_birth_last_name", "Last name at birth", true),
		},
		apply: func(f *Form, r *models.Request) {
			r.Person1FirstName = f.Value("person_1_first_name")
			r.Person1MiddleName = f.Value("person_1_middle_name")
			r.Person1LastName = f.Value("person_1_last_name")
			r.Person1BirthLastName = f.Value("person_1_birth_last_name")
			r.Person2FirstName = f.Value("person_2_first_name")
			r.Person2MiddleName = f.Value("person_2_middle_name")
			r.Person2LastName = f.Value("person_2_last_name")
			r.Person2BirthLastName = f.Value("person_2_birth_last_name")
		},
	}
	prefill(f, map[string]string{
		"person_1_first_name":      r.Person1FirstName,
		"person_1_middle_name":     r.Person1MiddleName,
		"person_1_last_name":       r.Person1LastName,
		"person_1_birth_last_name": r.Person1BirthLastName,
		"person_2_first_name":      r.Person2FirstName,
		"person_2_middle_name":     r.Person2MiddleName,
		"person_2_last_name":       r.Person2LastName,
		"person_2_birth_last_name": r.Person2BirthLastName,
	})
	return f
}

var countyLabels = map[models.RecordType]string{
	models.TypeBirth:    "County of birth",
	models.TypeMarriage: "County marriage occurred/license issued",
	models.TypeDeath:    "County of death",
}

func County(r *models.Request) *Form {
	f := &Form{
		Fields: []*Field{selectField("county_of_event", countyLabels[r.Type], models.CountyChoices)},
		apply: func(f *Form, r *models.Request) {
			r.CountyOfEvent = f.Value("county_of_event")
		},
	}
	f.Field("county_of_event").Value = r.CountyOfEvent
	return f
}

// EventDate collects the date of birth, marriage or death.
func EventDate(r *models.Request, now time.Time) *Form {
	return dateForm(r.DateOfEvent, now, func(r *models.Request, d time.Time) { r.DateOfEvent = &d })
}

// BirthDate collects the decedent's date of birth on death records.
func BirthDate(r *models.Request, now time.Time) *Form {
	return dateForm(r.DateOfBirth, now, func(r *models.Request, d time.Time) { r.DateOfBirth = &d })
}

func dateForm(current *time.Time, now time.Time, set func(*models.Request, time.Time)) *Form {
	var parsed time.Time
	f := &Form{
		Fields: []*Field{
			selectField("month", "Month", models.MonthChoices),
			{Name: "day", Label: "Day", Kind: KindNumber, Required: true, MaxLength: 2},
			{Name: "year", Label: "Year", Kind: KindNumber, Required: true, MaxLength: 4},
		},
		clean: func(f *Form) {
			d, msg := parseDate(f.Value("month"), f.Value("day"), f.Value("year"), now)
			if msg != "" {
				f.AddError(msg)
				return
			}
			parsed = d
		},
		apply: func(f *Form, r *models.Request) { set(r, parsed) },
	}
	if current != nil {
		prefill(f, map[string]string{
			"month": strconv.Itoa(int(current.Month())),
			"day":   strconv.Itoa(current.Day()),
			"year":  strconv.Itoa(current.Year()),
		})
	}
	return f
}

// parseDate returns the calendar date, or a user-facing message.
func parseDate(month, day, year string, now time.Time) (time.Time, string) {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, "Enter a valid month."
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, "Enter a valid day."
	}
	if !yearPattern.MatchString(year) {
		return time.Time{}, "Enter a valid four-digit year."
	}
	y, _ := strconv.Atoi(year)
	if y < 1850 {
		return time.Time{}, "Enter a valid four-digit year."
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != time.Month(m) {
		return time.Time{}, "Enter a valid date."
	}
	if t.After(now) {
		return time.Time{}, "The date cannot be in the future."
	}
	return t, ""
}

// Parents collects the names on a birth record.
func Parents(r *models.Request) *Form {
	f := &Form{
		Fields: []*Field{
			text("person_1_first_name", "First name", true),
			text("person_1_last_name", "Last name at birth", true),
			text("person_2_first_name", "First name", false),
			text("person_2_last_name", "Last name at birth", false),
		},
		apply: func(f *Form, r *models.Request) {
			r.Person1FirstName = f.Value("person_1_first_name")
			r.Person1LastName = f.Value("person_1_last_name")
			r.Person2FirstName = f.Value("person_2_first_name")
			r.Person2LastName = f.Value("person_2_last_name")
		},
	}
	prefill(f, map[string]string{
		"person_1_first_name": r.Person1FirstName,
		"person_1_last_name":  r.Person1LastName,
		"person_2_first_name": r.Person2FirstName,
		"person_2_last_name":  r.Person2LastName,
	})
	return f
}

// Parent collects the decedent's mother or parent.
func Parent(r *models.Request) *Form {
	f := &Form{
		Fields: []*Field{
			text("person_1_first_name", "First name", true),
			text("person_1_middle_name", "Middle name", false),
			text("person_1_last_name", "Last name at birth", true),
		},
		apply: func(f *Form, r *models.Request) {
			r.Person1FirstName = f.Value("person_1_first_name")
			r.Person1MiddleName = f.Value("person_1_middle_name")
			r.Person1LastName = f.Value("person_1_last_name")
		},
	}
	prefill(f, map[string]string{
		"person_1_first_name":  r.Person1FirstName,
		"person_1_middle_name": r.Person1MiddleName,
		"person_1_last_name":   r.Person1LastName,
	})
	return f
}

// Order collects the mailing details. An empty email is prefilled from
// the verified identity gateway email.
func Order(r *models.Request, verifiedEmail string) *Form {
	f := &Form{
		Fields: []*Field{
			selectField("number_of_records", "Number of records", models.NumberChoices),
			text("order_first_name", "First name", true),
			text("order_last_name", "Last name", true),
			text("address", "Street address", true),
			text("address_2", "Apartment, suite or unit", false),
			text("city", "City", true),
			selectField("state", "State", models.StateChoices),
			{Name: "zip_code", Label: "Zip code", Kind: KindText, Required: true, MaxLength: 10, Pattern: `[\d]{5}(-[\d]{4})?`},
			{Name: "email_address", Label: "Email address", Kind: KindEmail, Required: true, MaxLength: 128},
			{Name: "phone_number", Label: "Phone number", Kind: KindTel, Required: true, MaxLength: 10, Pattern: `^[0-9]+$`},
		},
		clean: func(f *Form) {
			if !zipPattern.MatchString(f.Value("zip_code")) {
				f.SetFieldError("zip_code", "Enter a valid zip code.")
			}
			if !emailPattern.MatchString(f.Value("email_address")) {
				f.SetFieldError("email_address", "Enter a valid email address.")
			}
			if !phonePattern.MatchString(f.Value("phone_number")) {
				f.SetFieldError("phone_number", "Enter a 10 digit phone number.")
			}
		},
		apply: func(f *Form, r *models.Request) {
			r.NumberOfRecords, _ = strconv.Atoi(f.Value("number_of_records"))
			r.OrderFirstName = f.Value("order_first_name")
			r.OrderLastName = f.Value("order_last_name")
			r.Address = f.Value("address")
			r.Address2 = f.Value("address_2")
			r.City = f.Value("city")
			r.State = f.Value("state")
			r.ZipCode = f.Value("zip_code")
			r.EmailAddress = f.Value("email_address")
			r.PhoneNumber = f.Value("phone_number")
		},
	}
	email := r.EmailAddress
	if email == "" {
		email = verifiedEmail
	}
	number := r.NumberOfRecords
	if number == 0 {
		number = 1
	}
	prefill(f, map[string]string{
		"number_of_records": strconv.Itoa(number),
		"order_first_name":  r.OrderFirstName,
		"order_last_name":   r.OrderLastName,
		"address":           r.Address,
		"address_2":         r.Address2,
		"city":              r.City,
		"state":             r.State,
		"zip_code":          r.ZipCode,
		"email_address":     email,
		"phone_number":      r.PhoneNumber,
	})
	return f
}

// Submit has no fields; it only confirms the preview.
func Submit() *Form {
	return &Form{}
}

func prefill(f *Form, values map[string]string) {
	for name, v := range values {
		if field := f.Field(name); field != nil {
			field.Value = v
		}
	}
}
