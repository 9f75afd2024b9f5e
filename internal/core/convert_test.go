package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCell_String(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"integral number", Number(150), "150"},
		{"fraction", Number(10.25), "10.25"},
		{"negative", Number(-3), "-3"},
		{"text", Text("Ana"), "Ana"},
		{"missing", Missing(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cell.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCell_Float(t *testing.T) {
	tests := []struct {
		cell   Cell
		want   float64
		wantOK bool
	}{
		{Number(2.5), 2.5, true},
		{Text(" 12 "), 12, true},
		{Text("doce"), 0, false},
		{Text("NaN"), 0, false},
		{Missing(), 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.cell.Float()
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Float(%#v) = %v, %v; want %v, %v", tt.cell, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCell_MarshalJSON(t *testing.T) {
	out, err := json.Marshal([]Cell{Number(3), Number(1.5), Text("x"), Missing()})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `[3,1.5,"x",null]` {
		t.Errorf("got %s", out)
	}
}

func TestIsNAMarker(t *testing.T) {
	for _, raw := range []string{"", "  ", "NA", "n/a", "NaN", "null", "None", "#N/A", "-nan"} {
		if !IsNAMarker(raw) {
			t.Errorf("IsNAMarker(%q) = false, want true", raw)
		}
	}
	for _, raw := range []string{"0", "nada", "-", "N.A."} {
		if IsNAMarker(raw) {
			t.Errorf("IsNAMarker(%q) = true, want false", raw)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"42", 42, true},
		{" -3.5 ", -3.5, true},
		{"1e3", 1000, true},
		{"1,000", 0, false},
		{"$5", 0, false},
		{"Inf", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseNumber(%q) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStorageValue(t *testing.T) {
	date := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		typ     LogicalType
		cell    Cell
		want    any
		wantErr bool
	}{
		{"missing is NULL", TypeInteger, Missing(), nil, false},
		{"integer from number", TypeInteger, Number(7), int64(7), false},
		{"integer from text", TypeInteger, Text("8"), int64(8), false},
		{"integer fraction", TypeInteger, Number(7.5), nil, true},
		{"integer garbage", TypeInteger, Text("siete"), nil, true},
		{"date", TypeDate, Text("2024-03-09"), date, false},
		{"date with midnight", TypeDate, Text("2024-03-09 00:00:00"), date, false},
		{"date wrong layout", TypeDate, Text("09/03/2024"), nil, true},
		{"varchar from number", TypeVarchar, Number(12), "12", false},
		{"text", TypeText, Text("hola"), "hola", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StorageValue(tt.typ, tt.cell)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StorageValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tm, ok := tt.want.(time.Time); ok {
				if gotTm, _ := got.(time.Time); !gotTm.Equal(tm) {
					t.Errorf("StorageValue() = %v, want %v", got, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("StorageValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, raw := range []string{"2024-01-31", " 2024-01-31 ", "2024-01-31T00:00:00", "2024-01-31T00:00:00Z"} {
		if _, err := ParseDate(raw); err != nil {
			t.Errorf("ParseDate(%q) unexpected error: %v", raw, err)
		}
	}
	for _, raw := range []string{"2024-02-30", "31-01-2024", "2024-01-31 12:00:00", ""} {
		if _, err := ParseDate(raw); err == nil {
			t.Errorf("ParseDate(%q) expected error", raw)
		}
	}
}
