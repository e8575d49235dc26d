package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/partstock-io/partstock/internal/category"
)

func testRules(t *testing.T) *category.RuleSet {
	t.Helper()
	rs, err := category.New([]category.Rule{
		{Pattern: `inductor`, Level1: "Passives", Level2: "Inductors"},
		{Pattern: `capacitor`, Level1: "Passives", Level2: "Capacitors"},
	}, category.Label{Level1: "Unsorted"})
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

func runImport(t *testing.T, lookup KeyedLookup, input string, dryRun bool) *Summary {
	t.Helper()
	imp := New(lookup, nil)
	summary, err := imp.Run(context.Background(), strings.NewReader(input), Options{
		Headers: testHeaderMap(t),
		Rules:   testRules(t),
		DryRun:  dryRun,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

const scenarioCSV = `Manufacturer,Mfr. Part #,Value,Tolerance,Description,Package (LxW)
Würth Elektronik,7447709100,10uH,,Power Inductor,12.00mm x 12.00mm
TDK,CLF7045T-100M,10uH,20%,Shielded Inductor,7mm x 4.5mm
Murata,GRM188R71C104KA01D,100nF,10%,MLCC Capacitor,not-a-dimension
Yageo,RC0603FR-0710KL,10k,1%,Chip Resistor,1.6mm x 0.8mm
WURTH ELEKTRONIK,7447709100,,20%,Power Inductor,
Samsung,CL10B104KB8NNNC,100nF,10%,MLCC Capacitor,1.6mm x 0.8mm
Vishay,,10R,5%,Missing part number,
Bourns,SRR1260-100M,10uH,30%,Power Inductor,12.5mm x 12.5mm
Kemet,C0805C104K5RACTU,100nF,10%,MLCC Capacitor,2mm x 1.25mm
Panasonic,ERJ-3EKF1002V,10k,1%,Chip Resistor,1.6mm x 0.8mm
`

// The canonical end-to-end scenario: ten data rows, two sharing one
// identity (the second filling a blank tolerance), one with an empty part
// number, one with malformed dimension text. The malformed dimension
// degrades to null and is NOT an error; only the identity-less row is.
func TestRunEndToEnd(t *testing.T) {
	lookup := newMemLookup()
	summary := runImport(t, lookup, scenarioCSV, false)

	if summary.Created != 8 {
		t.Errorf("created = %d, want 8", summary.Created)
	}
	if summary.Updated != 1 {
		t.Errorf("updated = %d, want 1", summary.Updated)
	}
	if summary.Skipped != 0 {
		t.Errorf("skipped = %d, want 0", summary.Skipped)
	}
	if summary.Errors != 1 {
		t.Errorf("errors = %d, want 1", summary.Errors)
	}

	if len(summary.ErrorRows) != 1 {
		t.Fatalf("error rows = %d, want 1", len(summary.ErrorRows))
	}
	er := summary.ErrorRows[0]
	if er.Line != 8 {
		t.Errorf("error row line = %d, want 8", er.Line)
	}
	if er.Reason != "missing manufacturer or part number" {
		t.Errorf("error row reason = %q", er.Reason)
	}

	// The duplicate-identity rows merged into one entity.
	key := NormalizedKey{Manufacturer: "WURTH-ELEKTRONIK", PartNumber: "7447709100"}
	ent := lookup.entities[key]
	if ent == nil {
		t.Fatal("merged entity not found")
	}
	if ent.Attrs[FieldValue] != "10uH" {
		t.Errorf("value = %q, want %q", ent.Attrs[FieldValue], "10uH")
	}
	if ent.Attrs[FieldTolerance] != "20%" {
		t.Errorf("tolerance = %q, want %q filled by the later row", ent.Attrs[FieldTolerance], "20%")
	}

	// Malformed dimension degraded to absent, not rejected.
	murata := lookup.entities[NormalizedKey{Manufacturer: "MURATA", PartNumber: "GRM188R71C104KA01D"}]
	if murata == nil {
		t.Fatal("murata entity not found")
	}
	if _, ok := murata.Attrs[FieldLengthMM]; ok {
		t.Error("unparseable dimension produced a length attribute")
	}
}

func TestRunIdempotence(t *testing.T) {
	lookup := newMemLookup()
	runImport(t, lookup, scenarioCSV, false)

	second := runImport(t, lookup, scenarioCSV, false)
	if second.Created != 0 {
		t.Errorf("second run created = %d, want 0", second.Created)
	}
	// Every surviving row is already up to date; the pair of duplicate
	// rows now reads back the merged entity, so the blank-tolerance row
	// skips too.
	if second.Updated != 0 {
		t.Errorf("second run updated = %d, want 0", second.Updated)
	}
	if second.Skipped != 9 {
		t.Errorf("second run skipped = %d, want 9", second.Skipped)
	}
	if second.Errors != 1 {
		t.Errorf("second run errors = %d, want 1", second.Errors)
	}
}

func TestRunDryRunEquivalence(t *testing.T) {
	realLookup := newMemLookup()
	real := runImport(t, realLookup, scenarioCSV, false)

	dryLookup := newMemLookup()
	dry := runImport(t, dryLookup, scenarioCSV, true)

	if dry.Created != real.Created || dry.Updated != real.Updated ||
		dry.Skipped != real.Skipped || dry.Errors != real.Errors {
		t.Errorf("dry run counts %d/%d/%d/%d differ from real run %d/%d/%d/%d",
			dry.Created, dry.Updated, dry.Skipped, dry.Errors,
			real.Created, real.Updated, real.Skipped, real.Errors)
	}
	if dryLookup.creates != 0 || dryLookup.updates != 0 {
		t.Errorf("dry run issued writes: creates=%d updates=%d", dryLookup.creates, dryLookup.updates)
	}
	if !dry.DryRun || real.DryRun {
		t.Errorf("dry_run flags: dry=%v real=%v", dry.DryRun, real.DryRun)
	}
}

func TestRunCategorizes(t *testing.T) {
	lookup := newMemLookup()
	imp := New(lookup, nil)

	input := "Manufacturer,Mfr. Part #,Description\n" +
		"TDK,X-1,Power Inductor\n" +
		"Acme,Y-2,Flux Capacitor\n" +
		"Mystery,Z-3,Unknown widget\n"

	rules := testRules(t)
	if _, err := imp.Run(context.Background(), strings.NewReader(input), Options{
		Headers: testHeaderMap(t),
		Rules:   rules,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tests := []struct {
		key  NormalizedKey
		want category.Label
	}{
		{NormalizedKey{"TDK", "X-1"}, category.Label{Level1: "Passives", Level2: "Inductors"}},
		{NormalizedKey{"ACME", "Y-2"}, category.Label{Level1: "Passives", Level2: "Capacitors"}},
		{NormalizedKey{"MYSTERY", "Z-3"}, category.Label{Level1: "Unsorted"}},
	}
	for _, tt := range tests {
		if got, ok := lookup.categories[tt.key]; !ok || got != tt.want {
			t.Errorf("category for %v = %+v (found %v), want %+v", tt.key, got, ok, tt.want)
		}
	}
}

func TestRunBadRowShapeContinues(t *testing.T) {
	lookup := newMemLookup()

	input := "Manufacturer,Mfr. Part #,Value\n" +
		"TDK,X-1,10uH\n" +
		"short,row\n" +
		"Murata,Y-2,100nF\n"

	summary := runImport(t, lookup, input, false)
	if summary.Created != 2 {
		t.Errorf("created = %d, want 2", summary.Created)
	}
	if summary.Errors != 1 {
		t.Fatalf("errors = %d, want 1", summary.Errors)
	}
	if !strings.Contains(summary.ErrorRows[0].Reason, "malformed row") {
		t.Errorf("reason = %q", summary.ErrorRows[0].Reason)
	}
	if summary.ErrorRows[0].Line != 3 {
		t.Errorf("line = %d, want 3", summary.ErrorRows[0].Line)
	}
}

func TestRunSkipsEmptyRows(t *testing.T) {
	lookup := newMemLookup()

	input := "Manufacturer,Mfr. Part #,Value\n" +
		"TDK,X-1,10uH\n" +
		",,\n" +
		"Murata,Y-2,100nF\n"

	summary := runImport(t, lookup, input, false)
	if summary.Rows != 2 {
		t.Errorf("rows = %d, want 2 (empty row not counted)", summary.Rows)
	}
	if summary.Errors != 0 {
		t.Errorf("errors = %d, want 0", summary.Errors)
	}
}

func TestRunEmptyInputFails(t *testing.T) {
	imp := New(newMemLookup(), nil)
	if _, err := imp.Run(context.Background(), strings.NewReader(""), Options{Headers: testHeaderMap(t)}); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestRunRequiresHeaderMap(t *testing.T) {
	imp := New(newMemLookup(), nil)
	if _, err := imp.Run(context.Background(), strings.NewReader("a,b\n"), Options{}); err == nil {
		t.Error("expected error for nil header map")
	}
}

func TestRunUnknownEncodingFails(t *testing.T) {
	imp := New(newMemLookup(), nil)
	_, err := imp.Run(context.Background(), strings.NewReader("a,b\n"), Options{
		Headers:  testHeaderMap(t),
		Encoding: "ebcdic",
	})
	if err == nil || !strings.Contains(err.Error(), "unsupported encoding") {
		t.Errorf("err = %v, want unsupported encoding", err)
	}
}

func TestRunLatin1Input(t *testing.T) {
	lookup := newMemLookup()
	imp := New(lookup, nil)

	// "Würth" in ISO-8859-1: 0xFC for ü.
	var buf bytes.Buffer
	buf.WriteString("Manufacturer,Mfr. Part #\n")
	buf.Write([]byte{'W', 0xFC, 'r', 't', 'h'})
	buf.WriteString(",7447709100\n")

	summary, err := imp.Run(context.Background(), &buf, Options{
		Headers:  testHeaderMap(t),
		Encoding: "latin-1",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Created != 1 {
		t.Fatalf("created = %d, want 1", summary.Created)
	}
	if _, ok := lookup.entities[NormalizedKey{Manufacturer: "WURTH", PartNumber: "7447709100"}]; !ok {
		t.Errorf("latin-1 manufacturer did not normalize to WURTH; entities: %v", keysOf(lookup))
	}
}

func TestRunCancellation(t *testing.T) {
	lookup := newMemLookup()
	imp := New(lookup, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := imp.Run(ctx, strings.NewReader(scenarioCSV), Options{Headers: testHeaderMap(t)})
	if err == nil {
		t.Fatal("expected context error")
	}
	if summary == nil {
		t.Fatal("cancelled run must still return its partial summary")
	}
	if summary.Rows != 0 {
		t.Errorf("rows = %d, want 0 for immediate cancellation", summary.Rows)
	}
	if lookup.creates != 0 {
		t.Errorf("creates = %d, want 0", lookup.creates)
	}
}

func TestWriteErrorCSV(t *testing.T) {
	lookup := newMemLookup()
	summary := runImport(t, lookup, scenarioCSV, false)

	var buf bytes.Buffer
	if err := summary.WriteErrorCSV(&buf); err != nil {
		t.Fatalf("WriteErrorCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 error row:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "Reason,Manufacturer") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Vishay") {
		t.Errorf("error row = %q, want original row data", lines[1])
	}
}

func keysOf(m *memLookup) []NormalizedKey {
	keys := make([]NormalizedKey, 0, len(m.entities))
	for k := range m.entities {
		keys = append(keys, k)
	}
	return keys
}
