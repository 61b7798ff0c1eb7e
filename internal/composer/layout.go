package composer

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"patientboard/internal/header"
	"patientboard/internal/loader"
)

// CanvasMargin is the gap left between the photos and the canvas edge; the
// left column already starts 48 px in.
const CanvasMargin = 48

// Default canvas size used when no background image is configured: the
// extent of the regions (3435x2386, see MinCanvas) plus CanvasMargin on the
// right and bottom edges.
const (
	CanvasWidth  = 3435 + CanvasMargin
	CanvasHeight = 2386 + CanvasMargin
)

// HeaderRegion is where the patient block goes.
var HeaderRegion = image.Rect(0, 0, header.Width, header.Height)

// Regions maps each slot (index slot-1) to its place on the canvas. The top
// row holds the extra-oral portraits in the order frontal, lateral, smile;
// the right column and bottom row hold the intra-oral photos.
var Regions = [loader.SlotCount]image.Rectangle{
	region(48, 485, loader.PortraitWidth, loader.PortraitHeight),      // 1 extra-oral frontal
	region(1588, 485, loader.PortraitWidth, loader.PortraitHeight),    // 2 extra-oral smile
	region(844, 485, loader.PortraitWidth, loader.PortraitHeight),     // 3 extra-oral lateral
	region(1220, 1654, loader.LandscapeWidth, loader.LandscapeHeight), // 4 intra-oral frontal
	region(48, 1654, loader.LandscapeWidth, loader.LandscapeHeight),   // 5 intra-oral right
	region(2410, 1654, loader.LandscapeWidth, loader.LandscapeHeight), // 6 intra-oral left
	region(2410, 827, loader.LandscapeWidth, loader.LandscapeHeight),  // 7 occlusal lower
	region(2410, 20, loader.LandscapeWidth, loader.LandscapeHeight),   // 8 occlusal upper
}

func region(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}

// MinCanvas is the smallest canvas that holds every region.
func MinCanvas() image.Point {
	bounds := HeaderRegion
	for _, r := range Regions {
		bounds = bounds.Union(r)
	}
	return bounds.Max
}

// Compose places the header and photos on a white default canvas.
func Compose(head image.Image, photos [loader.SlotCount]*image.NRGBA) *image.NRGBA {
	return ComposeOn(nil, head, photos)
}

// ComposeOn places the header and photos on a copy of background. A nil
// background uses the white default canvas. Photos are drawn at their
// region's origin; a nil photo leaves its region untouched.
func ComposeOn(background image.Image, head image.Image, photos [loader.SlotCount]*image.NRGBA) *image.NRGBA {
	var canvas *image.NRGBA
	if background == nil {
		canvas = imaging.New(CanvasWidth, CanvasHeight, color.White)
	} else {
		canvas = imaging.Clone(background)
	}
	if head != nil {
		xdraw.Draw(canvas, HeaderRegion, head, head.Bounds().Min, xdraw.Src)
	}
	for i, photo := range photos {
		if photo == nil {
			continue
		}
		xdraw.Draw(canvas, Regions[i], photo, photo.Bounds().Min, xdraw.Src)
	}
	return canvas
}
