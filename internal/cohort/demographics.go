package cohort

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Demographics holds the sex, age and age band of one row.
type Demographics struct {
	Sex     string `json:"sexo"`
	Age     int    `json:"idade"`
	AgeBand string `json:"faixa_etaria"`
}

type ageBand struct {
	lower int
	label string
}

// Lower bounds are inclusive, each band ends where the next one starts.
var ageBands = []ageBand{
	{0, "0-18"},
	{18, "19-23"},
	{23, "24-28"},
	{28, "29-33"},
	{33, "34-38"},
	{38, "39-43"},
	{43, "44-48"},
	{48, "49-53"},
	{53, "54-58"},
	{58, "59+"},
}

// ComputeDemographics derives sex, age and age band. An explicit age is used
// when present and non-negative; otherwise the age comes from the birth date
// at the reference month.
func ComputeDemographics(sex, age, birth string, hasAge bool, ref time.Time) Demographics {
	d := Demographics{Sex: NormalizeSex(sex), Age: UnknownAge}

	if hasAge {
		if v, ok := ToNumeric(age); ok && v >= 0 {
			d.Age = int(v)
		}
	}
	if d.Age < 0 {
		if b, ok := ParseDate(birth); ok {
			d.Age = floorDiv(daysBetween(b, ReferenceMonth(ref)), 365)
		}
	}
	if d.Age < 0 {
		d.Age = UnknownAge
	}

	d.AgeBand = AgeBand(d.Age)
	return d
}

// NormalizeSex keeps the upper-cased first character of the value.
func NormalizeSex(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return SexNotInformed
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r))
}

// AgeBand returns the band label for an age; negative ages have no band.
func AgeBand(age int) string {
	if age < 0 {
		return AgeBandNoData
	}
	label := ageBands[0].label
	for _, b := range ageBands {
		if age < b.lower {
			break
		}
		label = b.label
	}
	return label
}
