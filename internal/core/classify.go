package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

// OutcomeKind is the decision for one row.
type OutcomeKind int

const (
	OutcomeSkip OutcomeKind = iota
	OutcomeError
	OutcomeArtifact
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkip:
		return "skip"
	case OutcomeError:
		return "error"
	case OutcomeArtifact:
		return "artifact"
	default:
		return "unknown"
	}
}

// ReasonNoLink is reported for rows that name someone but carry no link.
const ReasonNoLink = "no link provided"

// Outcome is a classified row with its resolved slot values.
type Outcome struct {
	Kind   OutcomeKind
	Label  string
	Reason string

	URL       string // Trimmed, not yet normalized
	FirstName string
	LastName  string
	Platform  string
}

// Clean keeps only letters and digits of any script. It decides whether a
// value counts as present; it never changes what gets rendered.
func Clean(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Classify decides what to do with row index. A row with no meaningful
// url or name is skipped; a named row without a url is an error.
func Classify(index int, row tabular.Row, m mapping.Mapping) Outcome {
	out := Outcome{
		URL:       strings.TrimSpace(m.Value(row, mapping.SlotURL)),
		FirstName: m.Value(row, mapping.SlotFirstName),
		LastName:  m.Value(row, mapping.SlotLastName),
		Platform:  m.Value(row, mapping.SlotPlatform),
	}
	out.Label = RowLabel(index, out.FirstName, out.LastName)

	hasURL := Clean(out.URL) != ""
	switch {
	case !hasURL && Clean(out.FirstName) == "" && Clean(out.LastName) == "":
		out.Kind = OutcomeSkip
	case !hasURL:
		out.Kind = OutcomeError
		out.Reason = ReasonNoLink
	default:
		out.Kind = OutcomeArtifact
	}
	return out
}

// RowLabel names a row for reports: the person's name, or its position.
func RowLabel(index int, first, last string) string {
	if label := strings.TrimSpace(first + " " + last); label != "" {
		return label
	}
	return "Row " + strconv.Itoa(index+1)
}
