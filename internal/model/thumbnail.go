package model

// ThumbSize represents the available thumbnail widths.
// Values are the size names accepted by the thumbnail endpoint.
type ThumbSize string

const (
	ThumbXS ThumbSize = "xs" // 160px
	ThumbS  ThumbSize = "s"  // 320px
	ThumbM  ThumbSize = "m"  // 640px
	ThumbL  ThumbSize = "l"  // 1024px
	ThumbXL ThumbSize = "xl" // 1600px
)

// ThumbPixels maps each ThumbSize to its target width.
var ThumbPixels = map[ThumbSize]int{
	ThumbXS: 160,
	ThumbS:  320,
	ThumbM:  640,
	ThumbL:  1024,
	ThumbXL: 1600,
}

// ValidThumbSize checks if a string is a valid ThumbSize.
func ValidThumbSize(s string) bool {
	_, ok := ThumbPixels[ThumbSize(s)]
	return ok
}

// AllThumbSizes lists every size in ascending order.
var AllThumbSizes = []ThumbSize{ThumbXS, ThumbS, ThumbM, ThumbL, ThumbXL}
