package domain

import "fmt"

// InventoryRecord is the stock of one blood type at one location.
// (BloodType, Location) is its natural key.
type InventoryRecord struct {
	ID         string
	BloodType  string
	Location   string
	Quantity   int
	RegionName *string // nil when the client did not send region_name
	Extra      map[string]any
}

// InventoryKey is the natural key of an InventoryRecord.
type InventoryKey struct {
	BloodType string
	Location  string
}

func (r InventoryRecord) Key() InventoryKey {
	return InventoryKey{BloodType: r.BloodType, Location: r.Location}
}

func (r InventoryRecord) Validate() error {
	region := ""
	if r.RegionName != nil {
		region = *r.RegionName
	}
	err := checkFields(
		fieldCheck{name: "blood_type", value: r.BloodType, limit: MaxBloodTypeLength, required: true},
		fieldCheck{name: "location", value: r.Location, limit: MaxTextLength, required: true},
		fieldCheck{name: "region_name", value: region, limit: MaxTextLength},
	)
	if err != nil {
		return err
	}
	if r.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	return nil
}

// ApplyUpdate copies the mutable fields of an incoming upsert onto an
// existing record. Everything else on the existing record is left alone.
func (r InventoryRecord) ApplyUpdate(in InventoryRecord) InventoryRecord {
	out := r
	out.Extra = copyExtra(r.Extra)
	out.Quantity = in.Quantity
	if in.RegionName != nil {
		region := *in.RegionName
		out.RegionName = &region
	}
	return out
}

func (r InventoryRecord) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"blood_type": r.BloodType,
		"location":   r.Location,
		"quantity":   r.Quantity,
	}
	if r.ID != "" {
		known["_id"] = r.ID
	}
	if r.RegionName != nil {
		known["region_name"] = *r.RegionName
	}
	return encodeDocument(r.Extra, known)
}

func (r *InventoryRecord) UnmarshalJSON(data []byte) error {
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}
	var out InventoryRecord
	if out.ID, _, err = doc.takeString("_id"); err != nil {
		return err
	}
	if out.BloodType, _, err = doc.takeString("blood_type"); err != nil {
		return err
	}
	if out.Location, _, err = doc.takeString("location"); err != nil {
		return err
	}
	quantity, ok, err := doc.takeInt("quantity")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: quantity is required", ErrValidation)
	}
	out.Quantity = quantity
	region, ok, err := doc.takeString("region_name")
	if err != nil {
		return err
	}
	if ok {
		out.RegionName = &region
	}
	if out.Extra, err = doc.extra(); err != nil {
		return err
	}
	*r = out
	return nil
}
