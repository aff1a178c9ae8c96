package core

import (
	"testing"

	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

func testMapping() mapping.Mapping {
	return mapping.New().
		Set(mapping.SlotURL, mapping.Column("Link")).
		Set(mapping.SlotFirstName, mapping.Column("Name")).
		Set(mapping.SlotLastName, mapping.Column("Surname"))
}

func textRow(kv ...string) tabular.Row {
	row := make(tabular.Row, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		row[kv[i]] = tabular.TextCell(kv[i+1])
	}
	return row
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		row    tabular.Row
		kind   OutcomeKind
		label  string
		reason string
	}{
		{"link and name", textRow("Link", " https://a.example ", "Name", "Ann", "Surname", "Lee"), OutcomeArtifact, "Ann Lee", ""},
		{"link only", textRow("Link", "t.me/x"), OutcomeArtifact, "Row 3", ""},
		{"blank row", textRow(), OutcomeSkip, "Row 3", ""},
		{"punctuation only", textRow("Link", " - ", "Name", "..."), OutcomeSkip, "...", ""},
		{"name without link", textRow("Name", "Bob"), OutcomeError, "Bob", ReasonNoLink},
		{"cyrillic surname", textRow("Surname", "Иванов", "Link", " - "), OutcomeError, "Иванов", ReasonNoLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(2, tt.row, testMapping())
			if out.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", out.Kind, tt.kind)
			}
			if out.Label != tt.label {
				t.Errorf("Label = %q, want %q", out.Label, tt.label)
			}
			if out.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", out.Reason, tt.reason)
			}
		})
	}
}

func TestClassify_TrimsURL(t *testing.T) {
	out := Classify(0, textRow("Link", "  https://a.example\t"), testMapping())
	if out.URL != "https://a.example" {
		t.Errorf("URL = %q", out.URL)
	}
}

func TestClassify_CustomURL(t *testing.T) {
	m := testMapping().Set(mapping.SlotURL, mapping.Custom("https://fixed.example"))
	out := Classify(0, textRow("Name", "Ann"), m)
	if out.Kind != OutcomeArtifact || out.URL != "https://fixed.example" {
		t.Errorf("got %+v", out)
	}
}

func TestClean(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"  ":           "",
		"-_.,":         "",
		"Ann-Marie 2":  "AnnMarie2",
		"Фамилия!":     "Фамилия",
		"https://a.io": "httpsaio",
	}
	for in, want := range tests {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}
