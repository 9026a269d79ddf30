package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/siherrmann/archivist/helper"
)

// CitationIndex maps each citation field to the join keys it cites.
// It is what inbound resolution searches on.
type CitationIndex map[RelationField][]string

func (c CitationIndex) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// ComponentData is the full component payload stored as JSONB.
type ComponentData Component

func (d ComponentData) Value() (driver.Value, error) {
	return json.Marshal(Component(d))
}

func (d *ComponentData) Scan(value interface{}) error {
	return scanJSONB(value, (*Component)(d), Component{})
}

// GroupData is a group framing read back from JSONB.
type GroupData Group

func (g *GroupData) Scan(value interface{}) error {
	return scanJSONB(value, (*Group)(g), Group{})
}

func scanJSONB[T any](value interface{}, target *T, empty T) error {
	if value == nil {
		*target = empty
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, target)
}
