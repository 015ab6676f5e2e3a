package domain

import "time"

// CreatedAtLayout is the ISO-8601 rendering of Demand.CreatedAt.
const CreatedAtLayout = time.RFC3339Nano

// Demand is a request for a blood type, typically scoped to a region.
type Demand struct {
	ID         string
	BloodType  string
	RegionName string
	Extra      map[string]any
	CreatedAt  time.Time
}

func (d Demand) Validate() error {
	return checkFields(
		fieldCheck{name: "blood_type", value: d.BloodType, limit: MaxBloodTypeLength, required: true},
		fieldCheck{name: "region_name", value: d.RegionName, limit: MaxTextLength},
	)
}

func (d Demand) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"blood_type": d.BloodType,
		"created_at": d.CreatedAt.UTC().Format(CreatedAtLayout),
	}
	if d.ID != "" {
		known["_id"] = d.ID
	}
	if d.RegionName != "" {
		known["region_name"] = d.RegionName
	}
	return encodeDocument(d.Extra, known)
}

func (d *Demand) UnmarshalJSON(data []byte) error {
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}
	var out Demand
	if out.ID, _, err = doc.takeString("_id"); err != nil {
		return err
	}
	if out.BloodType, _, err = doc.takeString("blood_type"); err != nil {
		return err
	}
	if out.RegionName, _, err = doc.takeString("region_name"); err != nil {
		return err
	}
	// created_at is server-owned; anything unparsable is dropped and restamped.
	if createdAt, _, err := doc.takeString("created_at"); err == nil && createdAt != "" {
		if t, perr := time.Parse(CreatedAtLayout, createdAt); perr == nil {
			out.CreatedAt = t
		}
	}
	if out.Extra, err = doc.extra(); err != nil {
		return err
	}
	*d = out
	return nil
}
