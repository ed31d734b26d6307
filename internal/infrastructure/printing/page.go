package printing

// PaperSize represents the paper size for letter output
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"
	PaperSizeA3     PaperSize = "A3"
	PaperSizeLetter PaperSize = "LETTER"
)

// String returns the string representation of PaperSize
func (p PaperSize) String() string {
	return string(p)
}

// IsValid checks if the paper size is valid
func (p PaperSize) IsValid() bool {
	switch p {
	case PaperSizeA4, PaperSizeA3, PaperSizeLetter:
		return true
	default:
		return false
	}
}

// Dimensions returns the paper dimensions in millimeters (width, height)
func (p PaperSize) Dimensions() (width, height float64) {
	switch p {
	case PaperSizeA3:
		return 297, 420
	case PaperSizeLetter:
		return 215.9, 279.4
	default:
		return 210, 297
	}
}

// Orientation represents the page orientation
type Orientation string

const (
	OrientationPortrait  Orientation = "PORTRAIT"
	OrientationLandscape Orientation = "LANDSCAPE"
)

// Margins holds page margins in millimeters
type Margins struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// DefaultMargins returns the margins used for dispatch letters
func DefaultMargins() Margins {
	return Margins{Top: 15, Right: 12, Bottom: 15, Left: 12}
}
