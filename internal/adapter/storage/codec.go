package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
)

// encodeExtra renders the open extension fields of a record. Empty maps are
// stored as NULL.
func encodeExtra(extra map[string]any) (sql.NullString, error) {
	if len(extra) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode extra: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeExtra(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw.String)))
	dec.UseNumber()
	var extra map[string]any
	if err := dec.Decode(&extra); err != nil {
		return nil, fmt.Errorf("decode extra: %w", err)
	}
	return extra, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
