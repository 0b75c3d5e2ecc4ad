// Package forms binds and validates the wizard's posted fields and copies
// valid values onto a request.
package forms

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"ddrc/internal/vitalrecords/models"
)

type Kind string

const (
	KindText   Kind = "text"
	KindSelect Kind = "select"
	KindEmail  Kind = "email"
	KindTel    Kind = "tel"
	KindNumber Kind = "number"
)

// Field is one input, carrying its posted value and validation error for
// re-rendering.
type Field struct {
	Name      string
	Label     string
	Kind      Kind
	Required  bool
	MaxLength int
	Choices   []models.Choice
	Pattern   string
	Value     string
	Error     string
}

func (f *Field) check() {
	v := f.Value
	switch {
	case v == "" && f.Required:
		f.Error = "This field is required."
	case v == "":
	case f.MaxLength > 0 && utf8.RuneCountInString(v) > f.MaxLength:
		f.Error = "Ensure this value has at most " + strconv.Itoa(f.MaxLength) + " characters."
	case f.Kind == KindSelect && !models.HasChoice(f.Choices, v):
		f.Error = "Select a valid choice."
	}
}

// Form is an ordered set of fields plus non-field errors.
type Form struct {
	Fields []*Field
	Errors []string

	clean func(f *Form)
	apply func(f *Form, r *models.Request)
}

// Bind copies posted values and validates. It reports whether the form is valid.
func (f *Form) Bind(values url.Values) bool {
	for _, field := range f.Fields {
		field.Value = strings.TrimSpace(values.Get(field.Name))
		field.Error = ""
		field.check()
	}
	f.Errors = nil
	if f.clean != nil && f.fieldsValid() {
		f.clean(f)
	}
	return f.Valid()
}

func (f *Form) fieldsValid() bool {
	for _, field := range f.Fields {
		if field.Error != "" {
			return false
		}
	}
	return true
}

func (f *Form) Valid() bool {
	return len(f.Errors) == 0 && f.fieldsValid()
}

// Field returns the named field or nil.
func (f *Form) Field(name string) *Field {
	for _, field := range f.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

func (f *Form) Value(name string) string {
	if field := f.Field(name); field != nil {
		return field.Value
	}
	return ""
}

// AddError records a non-field error.
func (f *Form) AddError(msg string) {
	f.Errors = append(f.Errors, msg)
}

// SetFieldError marks name invalid.
func (f *Form) SetFieldError(name, msg string) {
	if field := f.Field(name); field != nil {
		field.Error = msg
	}
}

// Apply copies the bound values onto r. Call only after a valid Bind.
func (f *Form) Apply(r *models.Request) {
	if f.apply != nil {
		f.apply(f, r)
	}
}

func text(name, label string, required bool) *Field {
	return &Field{Name: name, Label: label, Kind: KindText, Required: required, MaxLength: 128}
}

func selectField(name, label string, choices []models.Choice) *Field {
	return &Field{Name: name, Label: label, Kind: KindSelect, Required: true, Choices: choices}
}
