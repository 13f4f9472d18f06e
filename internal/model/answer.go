package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the shapes an answer payload can take.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueChoice
	ValueBool
	ValueText
)

// Value is the polymorphic answer payload: a selected choice id for
// multiple_choice, a boolean for true_false, or free text for essay. The
// question's declared type is the discriminant authority; CoerceTo applies
// it at the point of capture.
type Value struct {
	kind     ValueKind
	choiceID int64
	boolean  bool
	text     string
}

// ChoiceValue builds a multiple-choice answer value.
func ChoiceValue(id int64) Value { return Value{kind: ValueChoice, choiceID: id} }

// BoolValue builds a true/false answer value.
func BoolValue(b bool) Value { return Value{kind: ValueBool, boolean: b} }

// TextValue builds an essay answer value.
func TextValue(s string) Value { return Value{kind: ValueText, text: s} }

// Kind returns the discriminant of the value.
func (v Value) Kind() ValueKind { return v.kind }

// ChoiceID returns the selected choice id if the value is a choice.
func (v Value) ChoiceID() (int64, bool) { return v.choiceID, v.kind == ValueChoice }

// Bool returns the boolean payload if the value is a boolean.
func (v Value) Bool() (bool, bool) { return v.boolean, v.kind == ValueBool }

// Text returns the free-text payload if the value is text.
func (v Value) Text() (string, bool) { return v.text, v.kind == ValueText }

// IsEmpty reports whether the value counts as "no answer": unset, or an
// essay answer with empty text.
func (v Value) IsEmpty() bool {
	return v.kind == ValueNone || (v.kind == ValueText && v.text == "")
}

// CoerceTo validates the value against a question's declared type and
// normalizes read-back representations (the API may echo true/false answers
// as the strings "true"/"false"). Returns an error when the shape cannot
// belong to that question type.
func (v Value) CoerceTo(t QuestionType) (Value, error) {
	switch t {
	case QuestionMultipleChoice:
		if v.kind == ValueChoice {
			return v, nil
		}
		// Read-back path: a choice id serialized as a string.
		if v.kind == ValueText {
			if id, err := strconv.ParseInt(v.text, 10, 64); err == nil && id > 0 {
				return ChoiceValue(id), nil
			}
		}
	case QuestionTrueFalse:
		if v.kind == ValueBool {
			return v, nil
		}
		if v.kind == ValueText {
			switch v.text {
			case "true":
				return BoolValue(true), nil
			case "false":
				return BoolValue(false), nil
			}
		}
		// Read-back path: booleans stored as 0/1.
		if v.kind == ValueChoice && (v.choiceID == 0 || v.choiceID == 1) {
			return BoolValue(v.choiceID == 1), nil
		}
	case QuestionEssay:
		if v.kind == ValueText {
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("answer value of kind %d does not match question type %q", v.kind, t)
}

// String renders the value for display and logging.
func (v Value) String() string {
	switch v.kind {
	case ValueChoice:
		return strconv.FormatInt(v.choiceID, 10)
	case ValueBool:
		return strconv.FormatBool(v.boolean)
	case ValueText:
		return v.text
	default:
		return ""
	}
}

// MarshalJSON writes the underlying payload directly: number, bool, string
// or null. This is the answer_value shape the API expects.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueChoice:
		return json.Marshal(v.choiceID)
	case ValueBool:
		return json.Marshal(v.boolean)
	case ValueText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON reads an answer_value of unknown shape. JSON numbers become
// choice ids, booleans become booleans, strings become text; callers coerce
// against the owning question's type afterwards.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case nil:
		*v = Value{}
	case float64:
		*v = ChoiceValue(int64(val))
	case bool:
		*v = BoolValue(val)
	case string:
		*v = TextValue(val)
	default:
		return fmt.Errorf("unsupported answer value %s", data)
	}
	return nil
}

// Answer binds a value to a question. At most one answer exists per question
// id within an attempt; the latest write replaces any prior value.
type Answer struct {
	QuestionID int64 `json:"question_id"`
	Value      Value `json:"answer_value"`
}
