package models

import "strconv"

// Choice is a select option: stored value and display label.
type Choice struct {
	Value string
	Label string
}

var FireChoices = []Choice{
	{"palisades", "Palisades fire"},
	{"eaton", "Eaton fire"},
}

var TypeChoices = []Choice{
	{"", "Select type"},
	{string(TypeBirth), "Birth record"},
	{string(TypeMarriage), "Marriage record"},
	{string(TypeDeath), "Death record"},
}

var relationshipChoices = []Choice{
	{"", "Select relationship"},
	{"self", "Self"},
	{"parent", "Parent"},
	{"legal guardian", "Legal guardian"},
	{"child", "Child"},
	{"grandparent", "Grandparent"},
	{"grandchild", "Grandchild"},
	{"sibling", "Sibling"},
	{"spouse", "Spouse"},
	{"domestic_partner", "Domestic partner"},
}

// RelationshipChoices lists who may order a record of type t. Death records
// cannot be ordered for oneself but can be ordered by surviving next of kin.
func RelationshipChoices(t RecordType) []Choice {
	if t != TypeDeath {
		return relationshipChoices
	}
	out := make([]Choice, 0, len(relationshipChoices))
	for _, c := range relationshipChoices {
		if c.Value != "self" {
			out = append(out, c)
		}
	}
	return append(out, Choice{"surviving_next_of_kin", "Surviving next of kin (As specified in HSC § 7100)"})
}

var MonthChoices = []Choice{
	{"", "Select"},
	{"1", "01 - January"},
	{"2", "02 - February"},
	{"3", "03 - March"},
	{"4", "04 - April"},
	{"5", "05 - May"},
	{"6", "06 - June"},
	{"7", "07 - July"},
	{"8", "08 - August"},
	{"9", "09 - September"},
	{"10", "10 - October"},
	{"11", "11 - November"},
	{"12", "12 - December"},
}

// NumberChoices are the allowed copy counts, 1 through 10.
var NumberChoices = func() []Choice {
	out := make([]Choice, 0, 10)
	for i := 1; i <= 10; i++ {
		s := strconv.Itoa(i)
		out = append(out, Choice{s, s})
	}
	return out
}()

var CountyChoices = []Choice{
	{"", "Select county"},
	{"Alameda", "Alameda"},
	{"Alpine", "Alpine"},
	{"Amador", "Amador"},
	{"Butte", "Butte"},
	{"Calaveras", "Calaveras"},
	{"Colusa", "Colusa"},
	{"Contra Costa", "Contra Costa"},
	{"Del Norte", "Del Norte"},
	{"El Dorado", "El Dorado"},
	{"Fresno", "Fresno"},
	{"Glenn", "Glenn"},
	{"Humboldt", "Humboldt"},
	{"Imperial", "Imperial"},
	{"Inyo", "Inyo"},
	{"Kern", "Kern"},
	{"Kings", "Kings"},
	{"Lake", "Lake"},
	{"Lassen", "Lassen"},
	{"Los Angeles", "Los Angeles"},
	{"Madera", "Madera"},
	{"Marin", "Marin"},
	{"Mariposa", "Mariposa"},
	{"Mendocino", "Mendocino"},
	{"Merced", "Merced"},
	{"Modoc", "Modoc"},
	{"Mono", "Mono"},
	{"Monterey", "Monterey"},
	{"Napa", "Napa"},
	{"Nevada", "Nevada"},
	{"Orange", "Orange"},
	{"Placer", "Placer"},
	{"Plumas", "Plumas"},
	{"Riverside", "Riverside"},
	{"Sacramento", "Sacramento"},
	{"San Benito", "San Benito"},
	{"San Bernardino", "San Bernardino"},
	{"San Diego", "San Diego"},
	{"San Francisco", "San Francisco"},
	{"San Joaquin", "San Joaquin"},
	{"San Luis Obispo", "San Luis Obispo"},
	{"San Mateo", "San Mateo"},
	{"Santa Barbara", "Santa Barbara"},
	{"Santa Clara", "Santa Clara"},
	{"Santa Cruz", "Santa Cruz"},
	{"Shasta", "Shasta"},
	{"Sierra", "Sierra"},
	{"Siskiyou", "Siskiyou"},
	{"Solano", "Solano"},
	{"Sonoma", "Sonoma"},
	{"Stanislaus", "Stanislaus"},
	{"Sutter", "Sutter"},
	{"Tehama", "Tehama"},
	{"Trinity", "Trinity"},
	{"Tulare", "Tulare"},
	{"Tuolumne", "Tuolumne"},
	{"Ventura", "Ventura"},
	{"Yolo", "Yolo"},
	{"Yuba", "Yuba"},
}

var StateChoices = []Choice{
	{"", "Select state"},
	{"AK", "Alaska"},
	{"AL", "Alabama"},
	{"AR", "Arkansas"},
	{"AS", "American Samoa"},
	{"AZ", "Arizona"},
	{"CA", "California"},
	{"CO", "Colorado"},
	{"CT", "Connecticut"},
	{"DC", "District of Columbia"},
	{"DE", "Delaware"},
	{"FL", "Florida"},
	{"FM", "Federated States of Micronesia"},
	{"GA", "Georgia"},
	{"GU", "Guam"},
	{"HI", "Hawaii"},
	{"IA", "Iowa"},
	{"ID", "Idaho"},
	{"IL", "Illinois"},
	{"IN", "Indiana"},
	{"KS", "Kansas"},
	{"KY", "Kentucky"},
	{"LA", "Louisiana"},
	{"MA", "Massachusetts"},
	{"MD", "Maryland"},
	{"ME", "Maine"},
	{"MH", "Marshall Islands"},
	{"MI", "Michigan"},
	{"MN", "Minnesota"},
	{"MO", "Missouri"},
	{"MP", "Northern Mariana Islands"},
	{"MS", "Mississippi"},
	{"MT", "Montana"},
	{"NC", "North Carolina"},
	{"ND", "North Dakota"},
	{"NE", "Nebraska"},
	{"NH", "New Hampshire"},
	{"NJ", "New Jersey"},
	{"NM", "New Mexico"},
	{"NV", "Nevada"},
	{"NY", "New York"},
	{"OH", "Ohio"},
	{"OK", "Oklahoma"},
	{"OR", "Oregon"},
	{"PA", "Pennsylvania"},
	{"PR", "Puerto Rico"},
	{"PW", "Palau"},
	{"RI", "Rhode Island"},
	{"SC", "South Carolina"},
	{"SD", "South Dakota"},
	{"TN", "Tennessee"},
	{"TX", "Texas"},
	{"UT", "Utah"},
	{"VA", "Virginia"},
	{"VI", "Virgin Islands"},
	{"VT", "Vermont"},
	{"WA", "Washington"},
	{"WI", "Wisconsin"},
	{"WV", "West Virginia"},
	{"WY", "Wyoming"},
}

// HasChoice reports whether value is a non-empty option in choices.
func HasChoice(choices []Choice, value string) bool {
	if value == "" {
		return false
	}
	for _, c := range choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// LabelOf returns the display label for value, or "" when absent.
func LabelOf(choices []Choice, value string) string {
	for _, c := range choices {
		if c.Value == value {
			return c.Label
		}
	}
	return ""
}

func IsFire(fire string) bool { return HasChoice(FireChoices, fire) }
