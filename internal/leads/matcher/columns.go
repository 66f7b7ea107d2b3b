package matcher

import "strings"

// Field names a semantic CSV column.
type Field string

const (
	FieldMBI             Field = "mbi"
	FieldFirstName       Field = "firstName"
	FieldLastName        Field = "lastName"
	FieldDateOfBirth     Field = "dateOfBirth"
	FieldPhone           Field = "phone"
	FieldTestType        Field = "testType"
	FieldVendor          Field = "vendor"
	FieldSubVendor       Field = "subVendor"
	FieldTrackingNumber  Field = "trackingNumber"
	FieldInboundTracking Field = "inboundTrackingNumber"
	FieldStatus          Field = "status"
	FieldDeterminations  Field = "determination"
	FieldShipDate        Field = "shipDate"
	FieldDeliveryDate    Field = "deliveryDate"
	FieldReturnDate      Field = "returnDate"
)

// fieldAliases maps each semantic field to the header spellings seen across
// vendor and lab exports, in priority order. The table is data-driven on
// purpose: a new carrier or lab format is a new alias entry, not new code.
var fieldAliases = []struct {
	Field   Field
	Aliases []string
}{
	{FieldMBI, []string{"mbi", "medicare id", "medicare_id", "medicareid", "beneficiary id", "medicare beneficiary identifier", "mbi number"}},
	{FieldFirstName, []string{"first name", "first_name", "firstname", "fname", "patient first name", "given name"}},
	{FieldLastName, []string{"last name", "last_name", "lastname", "lname", "patient last name", "surname", "family name"}},
	{FieldDateOfBirth, []string{"dob", "date of birth", "date_of_birth", "birthdate", "birth date", "patient dob"}},
	{FieldPhone, []string{"phone", "phone number", "phone_number", "telephone", "tel", "mobile", "cell", "patient phone", "contact number"}},
	{FieldTestType, []string{"test type", "test_type", "testtype", "test", "kit type", "product", "panel"}},
	{FieldVendor, []string{"vendor", "vendor name", "vendor_name", "vendor code", "source", "referral source", "marketer"}},
	{FieldSubVendor, []string{"sub vendor", "sub_vendor", "subvendor", "sub vendor name", "sub source"}},
	{FieldTrackingNumber, []string{"tracking number", "tracking_number", "trackingnumber", "tracking", "tracking #", "outbound tracking", "ship tracking"}},
	{FieldInboundTracking, []string{"inbound tracking number", "inbound_tracking", "return tracking", "return tracking number", "inbound tracking"}},
	{FieldStatus, []string{"status", "lead status", "disposition"}},
	{FieldDeterminations, []string{"determination", "doctor status", "approval status", "doctor approval", "decision", "consult result"}},
	{FieldShipDate, []string{"ship date", "ship_date", "shipped date", "date shipped", "shipment date"}},
	{FieldDeliveryDate, []string{"delivery date", "delivered date", "date delivered", "actual delivery date"}},
	{FieldReturnDate, []string{"return date", "returned date", "date returned", "kit return date"}},
}

// ResolveColumns maps a CSV header row to semantic field column indexes.
// Per field: every alias is tried with an exact case-insensitive match first,
// then with a substring match. Fields with no matching header are simply
// absent from the result — unresolved is not an error.
func ResolveColumns(header []string) map[Field]int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}

	result := make(map[Field]int)
	for _, fa := range fieldAliases {
		if idx, ok := resolveField(normalized, fa.Aliases); ok {
			result[fa.Field] = idx
		}
	}
	return result
}

// Value extracts the trimmed cell for a field, or "" when the field didn't
// resolve or the row is short.
func Value(columns map[Field]int, row []string, field Field) string {
	idx, ok := columns[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// BundleFromRow builds the matcher input from a resolved row.
func BundleFromRow(columns map[Field]int, row []string) Bundle {
	b := Bundle{
		MBI:            Value(columns, row, FieldMBI),
		FirstName:      Value(columns, row, FieldFirstName),
		LastName:       Value(columns, row, FieldLastName),
		Phone:          Value(columns, row, FieldPhone),
		TrackingNumber: Value(columns, row, FieldTrackingNumber),
	}
	if b.TrackingNumber == "" {
		b.TrackingNumber = Value(columns, row, FieldInboundTracking)
	}
	return b
}

func resolveField(headers []string, aliases []string) (int, bool) {
	for _, alias := range aliases {
		want := normalizeHeader(alias)
		for i, h := range headers {
			if h == want {
				return i, true
			}
		}
	}
	for _, alias := range aliases {
		want := normalizeHeader(alias)
		for i, h := range headers {
			if strings.Contains(h, want) {
				return i, true
			}
		}
	}
	return 0, false
}

// normalizeHeader strips spaces, dashes, and underscores so that
// "Tracking_Number", "tracking number", and "TrackingNumber" all meet.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer("-", "", "_", "", " ", "", "#", "").Replace(h)
}
