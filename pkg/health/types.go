package health

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category classifies a raw health record.
type Category string

const (
	CategoryVitals         Category = "vitals"
	CategoryLifestyle      Category = "lifestyle"
	CategoryMedicalHistory Category = "medical-history"
	CategoryWellnessLog    Category = "wellness-log"
)

// Categories lists all valid record categories in canonical order.
func Categories() []Category {
	return []Category{CategoryVitals, CategoryLifestyle, CategoryMedicalHistory, CategoryWellnessLog}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryVitals, CategoryLifestyle, CategoryMedicalHistory, CategoryWellnessLog:
		return true
	}
	return false
}

// Value is a single metric observation, either numeric or categorical.
// It accepts JSON numbers, strings, and bools so datasets can mix
// "resting_heart_rate": 72 with "mood": "tired".
type Value struct {
	Number  float64
	Text    string
	Numeric bool
}

func NumberValue(n float64) Value { return Value{Number: n, Numeric: true} }
func TextValue(s string) Value    { return Value{Text: s} }

func (v *Value) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Value{Number: n, Numeric: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Value{Text: s}
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Value{Text: strconv.FormatBool(b)}
		return nil
	}

	return fmt.Errorf("field value must be a number, string, or bool: %s", string(data))
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Text)
}

// String renders the observation for word counting and report output.
func (v Value) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// Record is one raw dated observation. Records are owned by the caller,
// consumed per run, and never persisted.
type Record struct {
	Timestamp time.Time        `json:"timestamp"`
	Category  Category         `json:"category"`
	Fields    map[string]Value `json:"fields"`
}

func (r Record) Validate() error {
	problems := []string{}
	if r.Timestamp.IsZero() {
		problems = append(problems, "timestamp is required")
	}
	if !r.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", r.Category))
	}
	if len(r.Fields) == 0 {
		problems = append(problems, "at least one field is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid record: %s", strings.Join(problems, "; "))
	}
	return nil
}
