package header_test

import (
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"patientboard/internal/header"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAge(t *testing.T) {
	cases := []struct {
		birth, at     time.Time
		years, months int
	}{
		{date(2010, 7, 2), date(2024, 3, 15), 13, 8},
		{date(2000, 1, 1), date(2000, 1, 1), 0, 0},
		{date(2020, 1, 1), date(2020, 7, 2), 0, 6},
		{date(2024, 1, 1), date(2020, 1, 1), 0, 0},
	}
	for _, tc := range cases {
		y, m := header.Age(tc.birth, tc.at)
		if y != tc.years || m != tc.months {
			t.Fatalf("Age(%s, %s) = %d/%d, want %d/%d",
				tc.birth.Format(time.DateOnly), tc.at.Format(time.DateOnly), y, m, tc.years, tc.months)
		}
	}
}

func TestLines(t *testing.T) {
	lines := header.Lines(header.Info{
		PatientName: "Maria Silva",
		DentistName: "Paulo Reis",
		Birthdate:   date(2010, 7, 2),
		Appointment: time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	})
	want := [4]string{
		"Maria Silva",
		"Dr(a). Paulo Reis",
		"Data Nasc.: 02/07/2010 Idade: 13a 8m",
		"Data: 15/03/2024",
	}
	if lines != want {
		t.Fatalf("unexpected lines:\n%q\nwant\n%q", lines, want)
	}
}

func TestParseAppointment(t *testing.T) {
	for _, value := range []string{
		"2024-03-15T10:30:00.000000-03:00",
		"2024-03-15T10:30:00Z",
		"2024-03-15T10:30:00",
		"2024-03-15",
	} {
		got, err := header.ParseAppointment(value)
		if err != nil {
			t.Fatalf("ParseAppointment(%q): %v", value, err)
		}
		if got.Format("02/01/2006") != "15/03/2024" {
			t.Fatalf("ParseAppointment(%q) = %s", value, got)
		}
	}
	if _, err := header.ParseAppointment("15/03/2024"); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}

func TestParseBirthdate(t *testing.T) {
	if _, err := header.ParseBirthdate("2010-07-02"); err != nil {
		t.Fatalf("ParseBirthdate: %v", err)
	}
	if _, err := header.ParseBirthdate("02/07/2010"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderDrawsTextOnWhite(t *testing.T) {
	fonts, err := header.LoadFonts("", "", 55)
	if err != nil {
		t.Fatalf("LoadFonts: %v", err)
	}
	defer fonts.Close()

	img := header.Render(fonts, header.Info{
		PatientName: "Maria Silva",
		DentistName: "Paulo Reis",
		Birthdate:   date(2010, 7, 2),
		Appointment: date(2024, 3, 15),
	})
	if b := img.Bounds(); b.Dx() != header.Width || b.Dy() != header.Height {
		t.Fatalf("unexpected bounds %v", b)
	}
	if c := img.NRGBAAt(5, 5); c != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("expected white margin, got %+v", c)
	}
	dark := 0
	for y := 35; y < 100; y++ {
		for x := header.LeftMargin; x < 400; x++ {
			if img.NRGBAAt(x, y).R < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatal("expected text pixels on the first line")
	}
}

func TestLoadFontsMissingFile(t *testing.T) {
	if _, err := header.LoadFonts(filepath.Join(t.TempDir(), "missing.ttf"), "", 55); err == nil {
		t.Fatal("expected error for missing font")
	}
}
