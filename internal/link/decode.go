package link

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/volcano-manager/internal/control"
)

// Decode failure kinds. Both are expected line noise.
var (
	ErrNotObject = errors.New("not a JSON object")
	ErrMalformed = errors.New("malformed JSON")
)

// DecodeError reports a line that is not a usable reading. It wraps
// ErrNotObject or ErrMalformed.
type DecodeError struct {
	Line  string
	Kind  error
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode %q: %v: %v", e.Line, e.Kind, e.Cause)
	}
	return fmt.Sprintf("decode %q: %v", e.Line, e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// FieldError reports a well-formed object whose field has the wrong JSON type.
// Unlike DecodeError this points at a firmware bug, not link noise.
type FieldError struct {
	Line  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q in %q: %v", e.Field, e.Line, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// DecodeLine turns one raw line into a Reading. Invalid UTF-8 is dropped and
// surrounding whitespace trimmed before decoding. Only the exact keys temp,
// risk and mode are read; absent or null fields take their defaults.
func DecodeLine(raw []byte) (control.Reading, error) {
	line := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))

	if !looksLikeObject(line) {
		return control.Reading{}, &DecodeError{Line: line, Kind: ErrNotObject}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return control.Reading{}, &DecodeError{Line: line, Kind: ErrMalformed, Cause: err}
	}

	r := control.Reading{DeviceMode: decodeMode(fields["mode"])}
	var err error
	if r.Temperature, err = decodeNumber(fields["temp"]); err != nil {
		return control.Reading{}, &FieldError{Line: line, Field: "temp", Err: err}
	}
	if r.Risk, err = decodeNumber(fields["risk"]); err != nil {
		return control.Reading{}, &FieldError{Line: line, Field: "risk", Err: err}
	}
	return r, nil
}

// decodeNumber returns 0 for an absent or null value.
func decodeNumber(raw json.RawMessage) (float64, error) {
	if raw == nil {
		return 0, nil
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// decodeMode is display-only, so it never fails: strings are used as-is and
// any other value is kept as its compact JSON text.
func decodeMode(raw json.RawMessage) string {
	if raw == nil {
		return control.DefaultDeviceMode
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == nil {
			return control.DefaultDeviceMode
		}
		return *s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func looksLikeObject(line string) bool {
	return len(line) >= 2 && line[0] == '{' && line[len(line)-1] == '}'
}
