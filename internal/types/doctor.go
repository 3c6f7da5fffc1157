package types

// Field names shared by extractors, the normalizer and the writers.
const (
	FieldName       = "name"
	FieldSpecialty  = "specialty"
	FieldAddress    = "address"
	FieldDistance   = "distance"
	FieldSectorInfo = "sector_info"
	FieldProfileURL = "profile_url"
)

// DoctorFields is the canonical field order. CSV columns follow it.
var DoctorFields = []string{
	FieldName,
	FieldSpecialty,
	FieldAddress,
	FieldDistance,
	FieldSectorInfo,
	FieldProfileURL,
}

// Doctor is one extracted listing. Name is always present; every other
// field is nil when the page did not carry it.
type Doctor struct {
	Name       string  `json:"name"`
	Specialty  *string `json:"specialty"`
	Address    *string `json:"address"`
	Distance   *string `json:"distance"`
	SectorInfo *string `json:"sector_info"`
	ProfileURL *string `json:"profile_url"`
}

// Value returns the named field and whether it is present.
func (d *Doctor) Value(field string) (string, bool) {
	var p *string
	switch field {
	case FieldName:
		return d.Name, d.Name != ""
	case FieldSpecialty:
		p = d.Specialty
	case FieldAddress:
		p = d.Address
	case FieldDistance:
		p = d.Distance
	case FieldSectorInfo:
		p = d.SectorInfo
	case FieldProfileURL:
		p = d.ProfileURL
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// Row returns the record as CSV cells in DoctorFields order. Absent fields
// become empty cells.
func (d *Doctor) Row() []string {
	row := make([]string, len(DoctorFields))
	for i, f := range DoctorFields {
		row[i], _ = d.Value(f)
	}
	return row
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
