package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ddrc/internal/vitalrecords/models"
)

// Form types identify the CDPH application a package carries.
const (
	FormTypeBirth    = "WILDFIRE_CDPH_VR_B0A6353F1"
	FormTypeMarriage = "WILDFIRE_CDPH_VR_M27FFEAFF"
	FormTypeDeath    = "WILDFIRE_CDPH_VR_DEATH"
)

const (
	SwornStatementTemplate = "sworn-statement.pdf"
	dateLayout             = "01/02/2006"
	signatureLayout        = "2006-01-02 15:04:05"
)

// ApplicationTemplate is the blank application for t.
func ApplicationTemplate(t models.RecordType) string {
	return "application_" + string(t) + ".pdf"
}

// PackageName is the stored name of r's package.
func PackageName(r *models.Request) string {
	submitted := ""
	if r.SubmittedAt != nil {
		submitted = r.SubmittedAt.Format("2006-01-02")
	}
	return fmt.Sprintf("vital-records-%s-%s-%s.pdf", submitted, r.Type, r.ID)
}

// ApplicationFields maps r onto the AcroForm fields of its application.
// Empty values are dropped.
func ApplicationFields(r *models.Request) (map[string]string, error) {
	fields := map[string]string{
		"package_id":               r.ID.String(),
		"WildfireName":             capitalize(r.Fire),
		"CopyType":                 "/WLDFREAUTH",
		"RelationshipToRegistrant": "/1",
		"NumberOfCopies":           strconv.Itoa(r.NumberOfRecords),
		"County":                   r.CountyOfEvent,
		"RegDOE":                   formatDate(r.DateOfEvent),
		"RequestorFirstName":       r.OrderFirstName,
		"RequestorLastName":        r.OrderLastName,
		"RequestorMailingAddress":  joinNonEmpty(r.Address, r.Address2),
		"RequestorCity":            r.City,
		"RequestorStateProvince":   r.State,
		"RequestorZipCode":         r.ZipCode,
		"RequestorCountry":         "United States",
		"RequestorEmail":           r.EmailAddress,
		"RequestorTelephone":       r.PhoneNumber,
	}

	switch r.Type {
	case models.TypeBirth:
		fields["CDPH_VR_FORMTYPE"] = FormTypeBirth
		fields["EventType"] = "Birth"
		fields["RegFirstName"] = r.FirstName
		fields["RegMiddleName"] = r.MiddleName
		fields["RegLastName"] = r.LastName
		fields["Parent1FirstName"] = r.Person1FirstName
		fields["Parent1LastName"] = r.Person1LastName
		fields["Parent2FirstName"] = r.Person2FirstName
		fields["Parent2LastName"] = r.Person2LastName
	case models.TypeMarriage:
		fields["CDPH_VR_FORMTYPE"] = FormTypeMarriage
		fields["EventType"] = "Marriage"
		fields["Spouse1FirstName"] = r.Person1FirstName
		fields["Spouse1MiddleName"] = r.Person1MiddleName
		fields["Spouse1LastName"] = r.Person1LastName
		fields["Spouse1BirthLastName"] = r.Person1BirthLastName
		fields["Spouse2FirstName"] = r.Person2FirstName
		fields["Spouse2MiddleName"] = r.Person2MiddleName
		fields["Spouse2LastName"] = r.Person2LastName
		fields["Spouse2BirthLastName"] = r.Person2BirthLastName
	case models.TypeDeath:
		fields["CDPH_VR_FORMTYPE"] = FormTypeDeath
		fields["EventType"] = "Death"
		fields["RegFirstName"] = r.FirstName
		fields["RegMiddleName"] = r.MiddleName
		fields["RegLastName"] = r.LastName
		fields["RegDOB"] = formatDate(r.DateOfBirth)
		fields["Parent1FirstName"] = r.Person1FirstName
		fields["Parent1MiddleName"] = r.Person1MiddleName
		fields["Parent1LastName"] = r.Person1LastName
	default:
		return nil, fmt.Errorf("request %s has no record type", r.ID)
	}
	return dropEmpty(fields), nil
}

// SwornStatementFields fills the sworn statement. The second signature
// records when the user authenticated, in loc.
func SwornStatementFields(r *models.Request, loc *time.Location) map[string]string {
	authorized := ""
	if r.StartedAt != nil {
		authorized = r.StartedAt.In(loc).Format(signatureLayout)
	}
	return dropEmpty(map[string]string{
		"registrantNameRow1":                joinNonEmpty(r.FirstName, r.MiddleName, r.LastName),
		"applicantRelationToRegistrantRow1": r.Relationship,
		"applicantName":                     r.LegalAttestation,
		"applicantSignature1":               r.LegalAttestation,
		"applicantSignature2":               "Authorized via California Identity Gateway " + authorized,
	})
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func dropEmpty(fields map[string]string) map[string]string {
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}
