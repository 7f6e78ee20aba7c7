package timezone

import (
	"testing"
	"time"
)

func TestParseTimezone(t *testing.T) {
	tests := []struct {
		name    string
		tz      string
		want    string
		wantErr bool
	}{
		{name: "UTC", tz: "UTC", want: "UTC"},
		{name: "empty string defaults to UTC", tz: "", want: "UTC"},
		{name: "Australia/Sydney", tz: "Australia/Sydney", want: "Australia/Sydney"},
		{name: "America/New_York", tz: "America/New_York", want: "America/New_York"},
		{name: "invalid timezone", tz: "Invalid/Timezone", want: "UTC", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseTimezone(tt.tz)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTimezone() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if loc.String() != tt.want {
				t.Errorf("ParseTimezone() location = %v, want %v", loc, tt.want)
			}
		})
	}
}

func TestIsValidTimezone(t *testing.T) {
	tests := []struct {
		name string
		tz   string
		want bool
	}{
		{"UTC", "UTC", true},
		{"empty", "", true},
		{"Australia/Sydney", "Australia/Sydney", true},
		{"invalid", "Invalid/Timezone", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTimezone(tt.tz); got != tt.want {
				t.Errorf("IsValidTimezone() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMustParseTimezone_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParseTimezone() did not panic on invalid zone")
		}
	}()
	MustParseTimezone("Nowhere/Atlantis")
}

func TestFromUnixMilli(t *testing.T) {
	sydney := MustParseTimezone(TimezoneAustraliaSydney)
	ms := time.Date(2026, 1, 15, 1, 30, 0, 0, time.UTC).UnixMilli()

	got := FromUnixMilli(ms, sydney)
	if got.Hour() != 12 || got.Minute() != 30 {
		t.Errorf("FromUnixMilli() = %v, want 12:30 local", got)
	}
	if FromUnixMilli(ms, nil).Location() != time.UTC {
		t.Error("FromUnixMilli(nil) should default to UTC")
	}
}

func TestStartOfDay(t *testing.T) {
	sydney := MustParseTimezone(TimezoneAustraliaSydney)
	// 2026-01-15 20:00 UTC is 2026-01-16 07:00 in Sydney.
	ts := time.Date(2026, 1, 15, 20, 0, 0, 0, time.UTC)

	got := StartOfDay(ts, sydney)
	want := time.Date(2026, 1, 16, 0, 0, 0, 0, sydney)
	if !got.Equal(want) {
		t.Errorf("StartOfDay() = %v, want %v", got, want)
	}
}
