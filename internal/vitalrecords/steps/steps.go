// Package steps describes the per-type page order of the request wizard.
package steps

import (
	"fmt"

	"github.com/google/uuid"

	"ddrc/internal/vitalrecords/models"
)

// Route is the last path segment of a wizard page under
// /vital-records/request/{id}/.
type Route string

const (
	RouteType      Route = "type"
	RouteStatement Route = "statement"
	RouteName      Route = "name"
	RouteCounty    Route = "county"
	RouteDate      Route = "date"
	RouteDOB       Route = "dob"
	RouteParents   Route = "parents"
	RouteParent    Route = "parent"
	RouteOrder     Route = "order"
	RouteSubmit    Route = "submit"
	// RouteSubmitted is the confirmation page, served at the request root.
	RouteSubmitted Route = ""
)

type Step struct {
	Name  string
	Route Route
}

var typeSteps = map[models.RecordType][]Step{
	models.TypeBirth: {
		{"Name", RouteName},
		{"County of birth", RouteCounty},
		{"Date of birth", RouteDate},
		{"Parents' names", RouteParents},
		{"Order information", RouteOrder},
		{"Preview & submit", RouteSubmit},
	},
	models.TypeMarriage: {
		{"Name", RouteName},
		{"County of marriage", RouteCounty},
		{"Date of marriage", RouteDate},
		{"Order information", RouteOrder},
		{"Preview & submit", RouteSubmit},
	},
	models.TypeDeath: {
		{"Name", RouteName},
		{"County of death", RouteCounty},
		{"Date of death", RouteDate},
		{"Date of birth", RouteDOB},
		{"Parent's name", RouteParent},
		{"Order information", RouteOrder},
		{"Preview & submit", RouteSubmit},
	},
}

// StepsFor returns the ordered steps for t, or nil for an unknown type.
func StepsFor(t models.RecordType) []Step {
	return typeSteps[t]
}

func indexOf(t models.RecordType, route Route) int {
	for i, s := range typeSteps[t] {
		if s.Route == route {
			return i
		}
	}
	return -1
}

// Has reports whether route is a step of t.
func Has(t models.RecordType, route Route) bool {
	return indexOf(t, route) >= 0
}

// StepNumber is the 1-based position of route in t's steps, 0 if absent.
func StepNumber(t models.RecordType, route Route) int {
	return indexOf(t, route) + 1
}

// Name returns the display name of route within t.
func Name(t models.RecordType, route Route) string {
	if i := indexOf(t, route); i >= 0 {
		return typeSteps[t][i].Name
	}
	return ""
}

// PreviousRoute is the page before route; the first step points back to
// the sworn statement.
func PreviousRoute(t models.RecordType, route Route) Route {
	i := indexOf(t, route)
	if i <= 0 {
		return RouteStatement
	}
	return typeSteps[t][i-1].Route
}

// NextRoute is the page after route; the last step leads to the
// submitted confirmation.
func NextRoute(t models.RecordType, route Route) Route {
	st := typeSteps[t]
	i := indexOf(t, route)
	if i < 0 || i == len(st)-1 {
		return RouteSubmitted
	}
	return st[i+1].Route
}

// FirstRoute is where the sworn statement continues to.
func FirstRoute(t models.RecordType) Route {
	if st := typeSteps[t]; len(st) > 0 {
		return st[0].Route
	}
	return RouteStatement
}

// URL builds the path of route for request id.
func URL(id uuid.UUID, route Route) string {
	if route == RouteSubmitted {
		return fmt.Sprintf("/vital-records/request/%s", id)
	}
	return fmt.Sprintf("/vital-records/request/%s/%s", id, route)
}
