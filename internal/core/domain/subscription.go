package domain

// Subscription records a user's interest in a blood type at a location.
type Subscription struct {
	ID        string
	UserID    string
	BloodType string
	Location  string
	Extra     map[string]any
}

func (s Subscription) Validate() error {
	return checkFields(
		fieldCheck{name: "user_id", value: s.UserID, limit: MaxTextLength, required: true},
		fieldCheck{name: "blood_type", value: s.BloodType, limit: MaxBloodTypeLength, required: true},
		fieldCheck{name: "location", value: s.Location, limit: MaxTextLength, required: true},
	)
}

func (s Subscription) MarshalJSON() ([]byte, error) {
	known := map[string]any{
		"user_id":    s.UserID,
		"blood_type": s.BloodType,
		"location":   s.Location,
	}
	if s.ID != "" {
		known["_id"] = s.ID
	}
	return encodeDocument(s.Extra, known)
}

func (s *Subscription) UnmarshalJSON(data []byte) error {
	doc, err := decodeDocument(data)
	if err != nil {
		return err
	}
	var out Subscription
	if out.ID, _, err = doc.takeString("_id"); err != nil {
		return err
	}
	if out.UserID, _, err = doc.takeString("user_id"); err != nil {
		return err
	}
	if out.BloodType, _, err = doc.takeString("blood_type"); err != nil {
		return err
	}
	if out.Location, _, err = doc.takeString("location"); err != nil {
		return err
	}
	if out.Extra, err = doc.extra(); err != nil {
		return err
	}
	*s = out
	return nil
}
