package link

import (
	"errors"
	"testing"

	"github.com/sweeney/volcano-manager/internal/control"
)

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want control.Reading
	}{
		{
			name: "all fields",
			line: `{"temp": 72.4, "risk": 0.8123, "mode": "DISASTER"}`,
			want: control.Reading{Temperature: 72.4, Risk: 0.8123, DeviceMode: "DISASTER"},
		},
		{
			name: "trailing newline and spaces",
			line: "  {\"temp\": 40, \"risk\": 0.1, \"mode\": \"SAFE\"}\r\n",
			want: control.Reading{Temperature: 40, Risk: 0.1, DeviceMode: "SAFE"},
		},
		{
			name: "missing fields take defaults",
			line: `{}`,
			want: control.Reading{DeviceMode: "UNKNOWN"},
		},
		{
			name: "only risk",
			line: `{"risk": 0.5}`,
			want: control.Reading{Risk: 0.5, DeviceMode: "UNKNOWN"},
		},
		{
			name: "null fields take defaults",
			line: `{"temp": null, "risk": null, "mode": null}`,
			want: control.Reading{DeviceMode: "UNKNOWN"},
		},
		{
			name: "unknown fields ignored",
			line: `{"temp": 30, "risk": 0.2, "mode": "SAFE", "h2s": 12.5, "so2": 3}`,
			want: control.Reading{Temperature: 30, Risk: 0.2, DeviceMode: "SAFE"},
		},
		{
			name: "risk is not clamped",
			line: `{"risk": 1.7}`,
			want: control.Reading{Risk: 1.7, DeviceMode: "UNKNOWN"},
		},
		{
			name: "invalid utf-8 is dropped",
			line: "{\"risk\": 0.4, \"mode\": \"SA\xffFE\"}",
			want: control.Reading{Risk: 0.4, DeviceMode: "SAFE"},
		},
		{
			name: "keys are case sensitive",
			line: `{"RISK": 0.95, "Mode": "X", "Temp": 900}`,
			want: control.Reading{DeviceMode: "UNKNOWN"},
		},
		{
			name: "case variant does not shadow exact key",
			line: `{"risk": 0.9, "Risk": 0.1}`,
			want: control.Reading{Risk: 0.9, DeviceMode: "UNKNOWN"},
		},
		{
			name: "duplicate exact key keeps last",
			line: `{"risk": 0.1, "risk": 0.9}`,
			want: control.Reading{Risk: 0.9, DeviceMode: "UNKNOWN"},
		},
		{
			name: "numeric mode is kept as text",
			line: `{"temp": 90, "risk": 0.95, "mode": 2}`,
			want: control.Reading{Temperature: 90, Risk: 0.95, DeviceMode: "2"},
		},
		{
			name: "object mode is compacted",
			line: `{"risk": 0.2, "mode": {"a": [1, true]}}`,
			want: control.Reading{Risk: 0.2, DeviceMode: `{"a":[1,true]}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeLine([]byte(tt.line))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeLineNoise(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind error
	}{
		{"empty", "", ErrNotObject},
		{"whitespace only", " \r\n", ErrNotObject},
		{"firmware banner", "--- SYSTEM STARTING ---", ErrNotObject},
		{"human readable output", "Risk Score: 0.8123 [ERUPTION]", ErrNotObject},
		{"partial frame head", `{"temp": 72.4, "ri`, ErrNotObject},
		{"partial frame tail", `sk": 0.8123, "mode": "SAFE"}`, ErrNotObject},
		{"array", `[1, 2, 3]`, ErrNotObject},
		{"lone brace", "{", ErrNotObject},
		{"braces with garbage", "{not json}", ErrMalformed},
		{"truncated middle", `{"temp": 72.4, "risk": }`, ErrMalformed},
		{"two objects", `{"risk": 0.1} {"risk": 0.9}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLine([]byte(tt.line))
			if err == nil {
				t.Fatal("expected error")
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected *DecodeError, got %T: %v", err, err)
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("expected kind %v, got %v", tt.kind, decodeErr.Kind)
			}
		})
	}
}

func TestDecodeLineFieldType(t *testing.T) {
	tests := []struct {
		line  string
		field string
	}{
		{`{"temp": 50, "risk": "high"}`, "risk"},
		{`{"temp": "hot", "risk": 0.95}`, "temp"},
		{`{"temp": 50, "risk": [0.9]}`, "risk"},
		{`{"temp": true, "mode": "SAFE"}`, "temp"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := DecodeLine([]byte(tt.line))
			if err == nil {
				t.Fatal("expected error")
			}

			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected *FieldError, got %T: %v", err, err)
			}
			if fieldErr.Field != tt.field {
				t.Errorf("expected field %s, got %q", tt.field, fieldErr.Field)
			}

			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				t.Error("field type mismatch must not be classified as line noise")
			}
		})
	}
}
