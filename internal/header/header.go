// Package header renders the four-line patient block printed in the top-left
// corner of every template.
package header

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Header block geometry.
const (
	Width      = 1200
	Height     = 308
	LeftMargin = 35
)

// lineTops are the top offsets of the four text lines.
var lineTops = [4]int{35, 105, 175, 245}

const daysPerYear = 365.2425

// Info holds the values printed on the header.
type Info struct {
	PatientName string
	DentistName string
	Birthdate   time.Time
	Appointment time.Time
}

// Fonts are the faces used for the bold first line and the regular rest.
type Fonts struct {
	Bold    font.Face
	Regular font.Face
}

// LoadFonts opens TrueType/OpenType faces at size points (72 DPI, so points
// equal pixels). Empty paths fall back to the bundled Go fonts.
func LoadFonts(boldPath, regularPath string, size float64) (*Fonts, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", size)
	}
	bold, err := loadFace(boldPath, gobold.TTF, size)
	if err != nil {
		return nil, fmt.Errorf("bold font: %w", err)
	}
	regular, err := loadFace(regularPath, goregular.TTF, size)
	if err != nil {
		bold.Close()
		return nil, fmt.Errorf("regular font: %w", err)
	}
	return &Fonts{Bold: bold, Regular: regular}, nil
}

// Close releases both faces.
func (f *Fonts) Close() error {
	if f == nil {
		return nil
	}
	return errors.Join(f.Bold.Close(), f.Regular.Close())
}

func loadFace(path string, fallback []byte, size float64) (font.Face, error) {
	data := fallback
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", displayName(path), err)
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func displayName(path string) string {
	if path == "" {
		return "built-in font"
	}
	return path
}

// Lines returns the four header strings.
func Lines(info Info) [4]string {
	years, months := Age(info.Birthdate, info.Appointment)
	return [4]string{
		info.PatientName,
		"Dr(a). " + info.DentistName,
		fmt.Sprintf("Data Nasc.: %s Idade: %da %dm", info.Birthdate.Format("02/01/2006"), years, months),
		"Data: " + info.Appointment.Format("02/01/2006"),
	}
}

// Age returns whole years and the remaining whole months between birth and
// at, using a mean Gregorian year. A birth after at yields zero.
func Age(birth, at time.Time) (years, months int) {
	elapsed := at.Sub(birth)
	if elapsed <= 0 {
		return 0, 0
	}
	age := elapsed.Hours() / 24 / daysPerYear
	whole := math.Floor(age)
	return int(whole), int(math.Floor((age - whole) * 12))
}

// Render draws the header onto a white Width x Height image.
func Render(fonts *Fonts, info Info) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for i, text := range Lines(info) {
		face := fonts.Regular
		if i == 0 {
			face = fonts.Bold
		}
		drawer := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.Black),
			Face: face,
			Dot:  fixed.P(LeftMargin, lineTops[i]+face.Metrics().Ascent.Ceil()),
		}
		drawer.DrawString(text)
	}
	return img
}

// ParseAppointment reads the record date. Only the wall-clock date and time
// are used; any fraction or UTC offset after the seconds is ignored.
func ParseAppointment(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	const layout = "2006-01-02T15:04:05"
	if len(value) >= len(layout) {
		if t, err := time.Parse(layout, value[:len(layout)]); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised appointment date %q", value)
}

// ParseBirthdate reads a YYYY-MM-DD birth date.
func ParseBirthdate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised birthdate %q", value)
	}
	return t, nil
}
