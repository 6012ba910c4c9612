package types

import (
	"encoding/json"
	"testing"
)

func TestReading_UnmarshalJSON(t *testing.T) {
	t.Run("recognized fields", func(t *testing.T) {
		var r Reading
		err := json.Unmarshal([]byte(`{"stationId":"WS-01","temperature":22.5,"humidity":45.3,"timestamp":"2025-01-01T12:00:00Z"}`), &r)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if r.StationID != "WS-01" || r.Timestamp != "2025-01-01T12:00:00Z" {
			t.Errorf("got station=%q timestamp=%q", r.StationID, r.Timestamp)
		}
		if r.Temperature == nil || *r.Temperature != 22.5 {
			t.Errorf("Temperature = %v; want 22.5", r.Temperature)
		}
		if r.Humidity == nil || *r.Humidity != 45.3 {
			t.Errorf("Humidity = %v; want 45.3", r.Humidity)
		}
		if r.Extra != nil {
			t.Errorf("Extra = %v; want nil", r.Extra)
		}
	})

	t.Run("missing fields stay absent", func(t *testing.T) {
		var r Reading
		if err := json.Unmarshal([]byte(`{}`), &r); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if r.StationID != "" || r.Temperature != nil || r.Humidity != nil || r.Timestamp != "" {
			t.Errorf("got %+v; want zero reading", r)
		}
	})

	t.Run("null values are absent", func(t *testing.T) {
		var r Reading
		if err := json.Unmarshal([]byte(`{"temperature":null,"stationId":null}`), &r); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if r.Temperature != nil || r.StationID != "" {
			t.Errorf("got %+v; want absent fields", r)
		}
		if string(r.Extra["temperature"]) != `null` || string(r.Extra["stationId"]) != `null` {
			t.Errorf("Extra = %v; want raw nulls kept", r.Extra)
		}
		if r.DisplayStation() != UnknownStation || r.DisplayTemperature() != NotAvailable {
			t.Errorf("display = %q %q; want placeholders", r.DisplayStation(), r.DisplayTemperature())
		}
	})

	t.Run("null and empty values are written back", func(t *testing.T) {
		in := `{"stationId":"","temperature":null,"humidity":40,"timestamp":""}`
		var r Reading
		if err := json.Unmarshal([]byte(in), &r); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if r.IsValid() || r.IsFault() {
			t.Errorf("IsValid=%v IsFault=%v; want neither", r.IsValid(), r.IsFault())
		}
		out, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		want := `{"humidity":40,"stationId":"","temperature":null,"timestamp":""}`
		if string(out) != want {
			t.Errorf("Marshal = %s; want %s", out, want)
		}

		var back Reading
		if err := json.Unmarshal(out, &back); err != nil {
			t.Fatalf("Unmarshal round trip: %v", err)
		}
		again, err := json.Marshal(back)
		if err != nil {
			t.Fatalf("Marshal round trip: %v", err)
		}
		if string(again) != want {
			t.Errorf("round trip = %s; want %s", again, want)
		}
	})

	t.Run("unknown and mistyped fields are preserved", func(t *testing.T) {
		var r Reading
		err := json.Unmarshal([]byte(`{"stationId":"WS-01","temperature":"hot","pressure":1013.2,"tags": [ "a" ]}`), &r)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if r.Temperature != nil {
			t.Errorf("Temperature = %v; want nil", *r.Temperature)
		}
		want := map[string]string{"temperature": `"hot"`, "pressure": `1013.2`, "tags": `["a"]`}
		for k, v := range want {
			if string(r.Extra[k]) != v {
				t.Errorf("Extra[%s] = %s; want %s", k, r.Extra[k], v)
			}
		}
	})

	t.Run("non-object payloads fail", func(t *testing.T) {
		for _, in := range []string{`42`, `"text"`, `[1,2]`, `null`, `{"stationId":`} {
			var r Reading
			if err := json.Unmarshal([]byte(in), &r); err == nil {
				t.Errorf("Unmarshal(%s) error = nil; want error", in)
			}
		}
	})
}

func TestReading_MarshalJSON(t *testing.T) {
	temp, hum := 20.0, 50.5
	r := Reading{
		StationID:   "WS-01",
		Temperature: &temp,
		Humidity:    &hum,
		Timestamp:   "t1",
		Extra:       map[string]json.RawMessage{"z": json.RawMessage(`1`), "a": json.RawMessage(`true`)},
	}
	got, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"stationId":"WS-01","temperature":20,"humidity":50.5,"timestamp":"t1","a":true,"z":1}`
	if string(got) != want {
		t.Errorf("Marshal = %s; want %s", got, want)
	}

	empty, err := json.Marshal(Reading{})
	if err != nil {
		t.Fatalf("Marshal empty: %v", err)
	}
	if string(empty) != `{}` {
		t.Errorf("Marshal empty = %s; want {}", empty)
	}
}

func TestReading_Classification(t *testing.T) {
	v := func(x float64) *float64 { return &x }
	tests := []struct {
		name      string
		temp      *float64
		wantFault bool
		wantValid bool
	}{
		{name: "normal", temp: v(21.3), wantValid: true},
		{name: "sentinel", temp: v(-999), wantFault: true},
		{name: "borderline above", temp: v(-998.9), wantValid: true},
		{name: "borderline below", temp: v(-999.0001), wantValid: true},
		{name: "absent", temp: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reading{Temperature: tt.temp}
			if got := r.IsFault(); got != tt.wantFault {
				t.Errorf("IsFault = %v; want %v", got, tt.wantFault)
			}
			if got := r.IsValid(); got != tt.wantValid {
				t.Errorf("IsValid = %v; want %v", got, tt.wantValid)
			}
		})
	}
}

func TestReading_Display(t *testing.T) {
	var r Reading
	if r.DisplayStation() != UnknownStation {
		t.Errorf("DisplayStation = %q; want %q", r.DisplayStation(), UnknownStation)
	}
	if r.DisplayTemperature() != NotAvailable || r.DisplayHumidity() != NotAvailable || r.DisplayTimestamp() != NotAvailable {
		t.Errorf("placeholders = %q %q %q; want N/A", r.DisplayTemperature(), r.DisplayHumidity(), r.DisplayTimestamp())
	}

	temp := 22.5
	r = Reading{StationID: "WS-02", Temperature: &temp, Timestamp: "t"}
	if r.DisplayStation() != "WS-02" || r.DisplayTemperature() != "22.5" || r.DisplayTimestamp() != "t" {
		t.Errorf("got %q %q %q", r.DisplayStation(), r.DisplayTemperature(), r.DisplayTimestamp())
	}
}
