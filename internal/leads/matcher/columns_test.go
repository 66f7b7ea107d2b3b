package matcher

import "testing"

func TestResolveColumnsExactBeforeSubstring(t *testing.T) {
	header := []string{"Patient DOB Verified", "DOB", "Notes"}
	columns := ResolveColumns(header)

	// "DOB" is an exact alias match and must beat the substring hit in
	// column 0, even though column 0 appears first.
	if idx, ok := columns[FieldDateOfBirth]; !ok || idx != 1 {
		t.Fatalf("dateOfBirth resolved to %d (ok=%v), want column 1", idx, ok)
	}
}

func TestResolveColumnsHeaderSpellings(t *testing.T) {
	header := []string{"MBI Number", "First_Name", "LASTNAME", "Phone-Number", "Tracking #", "Test Type"}
	columns := ResolveColumns(header)

	want := map[Field]int{
		FieldMBI:            0,
		FieldFirstName:      1,
		FieldLastName:       2,
		FieldPhone:          3,
		FieldTrackingNumber: 4,
		FieldTestType:       5,
	}
	for field, idx := range want {
		if got, ok := columns[field]; !ok || got != idx {
			t.Errorf("%s resolved to %d (ok=%v), want %d", field, got, ok, idx)
		}
	}
}

func TestResolveColumnsUnresolvedFieldsAbsent(t *testing.T) {
	columns := ResolveColumns([]string{"Foo", "Bar"})
	if len(columns) != 0 {
		t.Fatalf("columns = %v, want none resolved", columns)
	}

	// Unresolved fields read as empty, never error.
	if v := Value(columns, []string{"a", "b"}, FieldMBI); v != "" {
		t.Fatalf("Value for unresolved field = %q, want empty", v)
	}
}

func TestValueShortRow(t *testing.T) {
	columns := ResolveColumns([]string{"MBI", "Phone"})
	// Row shorter than the header: missing cells read as empty.
	if v := Value(columns, []string{"9AB3XY7MK21"}, FieldPhone); v != "" {
		t.Fatalf("Value on short row = %q, want empty", v)
	}
}

func TestBundleFromRow(t *testing.T) {
	header := []string{"MBI", "First Name", "Last Name", "Phone", "Return Tracking Number"}
	columns := ResolveColumns(header)
	row := []string{" 9AB3-XY7-MK21 ", "Martha", "Reyes", "512-555-0142", "1Z999AA10198765432"}

	b := BundleFromRow(columns, row)
	if b.MBI != "9AB3-XY7-MK21" {
		t.Errorf("MBI = %q, want trimmed raw value", b.MBI)
	}
	if b.FirstName != "Martha" || b.LastName != "Reyes" {
		t.Errorf("name = %q %q", b.FirstName, b.LastName)
	}
	// No outbound tracking column: the inbound number fills TrackingNumber.
	if b.TrackingNumber != "1Z999AA10198765432" {
		t.Errorf("TrackingNumber = %q, want inbound fallback", b.TrackingNumber)
	}
}
