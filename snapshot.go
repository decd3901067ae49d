package goban

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Snapshot is an opaque JSON object supplied by the client, such as a
// board position or a score summary. The server persists it and hands
// it back verbatim without looking inside.
type Snapshot map[string]any

// DefaultScores is the score snapshot a fresh session starts with.
func DefaultScores() Snapshot {
	return Snapshot{"black": 0, "white": 0}
}

// Value implements driver.Valuer so a Snapshot can be stored in a JSON
// column.
func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		s = Snapshot{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *Snapshot) Scan(value any) error {
	if value == nil {
		*s = Snapshot{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Snapshot", value)
	}

	if len(data) == 0 {
		*s = Snapshot{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// GormDataType keeps the column type consistent across the postgres and
// sqlite dialects.
func (Snapshot) GormDataType() string {
	return "json"
}
