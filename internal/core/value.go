package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueType tags the variant held by a Value.
type ValueType uint8

const (
	TypeAbsent ValueType = iota
	TypeNull
	TypeText
	TypeNumber
	TypeBool
)

func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeText:
		return "text"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "boolean"
	default:
		return "absent"
	}
}

// Value is a single cell. The zero Value is Absent.
type Value struct {
	typ  ValueType
	text string
	num  float64
	b    bool
}

// Text wraps a string cell.
func Text(s string) Value { return Value{typ: TypeText, text: s} }

// Number wraps a numeric cell.
func Number(f float64) Value { return Value{typ: TypeNumber, num: f} }

// Bool wraps a boolean cell.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Null is an explicit empty cell.
func Null() Value { return Value{typ: TypeNull} }

// Type returns the variant tag.
func (v Value) Type() ValueType { return v.typ }

// IsEmpty reports absent, null, or empty text.
func (v Value) IsEmpty() bool {
	switch v.typ {
	case TypeAbsent, TypeNull:
		return true
	case TypeText:
		return v.text == ""
	}
	return false
}

// AsText returns the string when v is Text.
func (v Value) AsText() (string, bool) {
	return v.text, v.typ == TypeText
}

// AsNumber returns the float when v is Number.
func (v Value) AsNumber() (float64, bool) {
	return v.num, v.typ == TypeNumber
}

// AsBool returns the boolean when v is Bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.typ == TypeBool
}

// Truthy is true for non-empty text, non-zero numbers and true.
func (v Value) Truthy() bool {
	switch v.typ {
	case TypeText:
		return v.text != ""
	case TypeNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case TypeBool:
		return v.b
	}
	return false
}

// String renders the value for messages and serialization.
// Absent and null render as the empty string.
func (v Value) String() string {
	switch v.typ {
	case TypeText:
		return v.text
	case TypeNumber:
		return FormatNumber(v.num)
	case TypeBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Float coerces the value to a number. ok is false when the value has no
// numeric reading (unparseable text, absent, null).
func (v Value) Float() (float64, bool) {
	switch v.typ {
	case TypeNumber:
		return v.num, !math.IsNaN(v.num)
	case TypeBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case TypeText:
		return ParseNumber(v.text)
	}
	return 0, false
}

// Time coerces the value to a date.
func (v Value) Time() (time.Time, bool) {
	switch v.typ {
	case TypeText:
		return ParseDate(v.text)
	case TypeNumber:
		// Spreadsheet serial day count.
		if math.IsNaN(v.num) || math.Abs(v.num) > maxSpreadsheetSerial {
			return time.Time{}, false
		}
		return spreadsheetEpoch.Add(time.Duration(v.num * float64(24*time.Hour))), true
	}
	return time.Time{}, false
}

var spreadsheetEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSpreadsheetSerial is 9999-12-31, the last day a spreadsheet can hold.
const maxSpreadsheetSerial = 2958465

// Equal compares variant and payload.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeText:
		return v.text == o.text
	case TypeNumber:
		return v.num == o.num
	case TypeBool:
		return v.b == o.b
	}
	return true
}

// GoString helps test failure output.
func (v Value) GoString() string {
	switch v.typ {
	case TypeText:
		return fmt.Sprintf("Text(%q)", v.text)
	case TypeNumber:
		return fmt.Sprintf("Number(%s)", FormatNumber(v.num))
	case TypeBool:
		return fmt.Sprintf("Bool(%t)", v.b)
	case TypeNull:
		return "Null()"
	}
	return "Absent"
}

// MarshalJSON encodes absent and null as JSON null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeText:
		return json.Marshal(v.text)
	case TypeNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(FormatNumber(v.num))
		}
		return json.Marshal(v.num)
	case TypeBool:
		return json.Marshal(v.b)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts null, strings, numbers and booleans.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty cell value")
	}
	switch data[0] {
	case 'n':
		*v = Null()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '{', '[':
		return fmt.Errorf("unsupported cell value %s", data)
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}
