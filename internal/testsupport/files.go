package testsupport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteJPEG writes a solid-colour JPEG of the given size.
func WriteJPEG(t testing.TB, path string, width, height int, fill color.Color) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	img := imaging.New(width, height, fill)
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

// WriteJPEGWithCaptureDate writes a solid-colour JPEG carrying an EXIF
// DateTimeOriginal tag, the way camera photos do.
func WriteJPEGWithCaptureDate(t testing.TB, path string, width, height int, fill color.Color, taken time.Time) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, imaging.New(width, height, fill), imaging.JPEG); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	app1 := exifSegment(taken.Format("2006:01:02 15:04:05"))

	data := make([]byte, 0, encoded.Len()+len(app1))
	data = append(data, encoded.Bytes()[:2]...) // SOI
	data = append(data, app1...)
	data = append(data, encoded.Bytes()[2:]...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// exifSegment builds an APP1 segment with IFD0 pointing at an Exif IFD that
// holds only DateTimeOriginal.
func exifSegment(stamp string) []byte {
	be := binary.BigEndian
	value := append([]byte(stamp), 0)

	var tiff []byte
	tiff = append(tiff, 'M', 'M', 0, 42)
	tiff = be.AppendUint32(tiff, 8)
	// IFD0: one entry, ExifIFDPointer -> offset 26.
	tiff = be.AppendUint16(tiff, 1)
	tiff = be.AppendUint16(tiff, 0x8769)
	tiff = be.AppendUint16(tiff, 4)
	tiff = be.AppendUint32(tiff, 1)
	tiff = be.AppendUint32(tiff, 26)
	tiff = be.AppendUint32(tiff, 0)
	// Exif IFD: DateTimeOriginal as ASCII stored at offset 44.
	tiff = be.AppendUint16(tiff, 1)
	tiff = be.AppendUint16(tiff, 0x9003)
	tiff = be.AppendUint16(tiff, 2)
	tiff = be.AppendUint32(tiff, uint32(len(value)))
	tiff = be.AppendUint32(tiff, 44)
	tiff = be.AppendUint32(tiff, 0)
	tiff = append(tiff, value...)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	segment := []byte{0xFF, 0xE1}
	segment = be.AppendUint16(segment, uint16(len(payload)+2))
	return append(segment, payload...)
}

// WritePNG writes a solid-colour PNG, used for background removal output.
func WritePNG(t testing.TB, path string, img image.Image) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

// SlotColors gives every slot a distinct colour so tests can tell where a
// photo landed on the composite.
var SlotColors = [8]color.NRGBA{
	{R: 200, A: 255},
	{G: 200, A: 255},
	{B: 200, A: 255},
	{R: 200, G: 200, A: 255},
	{R: 200, B: 200, A: 255},
	{G: 200, B: 200, A: 255},
	{R: 90, G: 40, B: 10, A: 255},
	{R: 10, G: 90, B: 140, A: 255},
}

// PatientFolder creates root/name holding the eight slot photos named the
// way the clinic's cameras name them ("<slot>_IMG_<n>.jpg"). Slots listed in
// skip are left out. Photos are small; the loader resizes them.
func PatientFolder(t testing.TB, root, name string, skip ...int) string {
	t.Helper()

	dir := filepath.Join(root, name)
	skipped := make(map[int]bool, len(skip))
	for _, slot := range skip {
		skipped[slot] = true
	}
	for slot := 1; slot <= 8; slot++ {
		if skipped[slot] {
			continue
		}
		width, height := 60, 40
		if slot <= 3 {
			width, height = 40, 60
		}
		file := filepath.Join(dir, fmt.Sprintf("%d_IMG_%04d.jpg", slot, 1000+slot))
		WriteJPEG(t, file, width, height, SlotColors[slot-1])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	return dir
}
