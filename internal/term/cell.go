package term

// ColorMode selects how a Color value is interpreted.
type ColorMode uint8

const (
	// ColorModeDefault means the terminal's configured default for the slot.
	ColorModeDefault ColorMode = iota
	// ColorModePalette is an index into the 256-color palette. Indices 0-7
	// are the classic colors, 8-15 the bright variants.
	ColorModePalette
	// ColorModeRGB is a direct 24-bit color.
	ColorModeRGB
)

// Color is a cell foreground or background color.
type Color struct {
	Mode    ColorMode
	Index   uint8
	R, G, B uint8
}

// DefaultColor returns the default color for either slot.
func DefaultColor() Color {
	return Color{Mode: ColorModeDefault}
}

// PaletteColor returns a palette-indexed color.
func PaletteColor(idx uint8) Color {
	return Color{Mode: ColorModePalette, Index: idx}
}

// RGBColor returns a direct 24-bit color.
func RGBColor(r, g, b uint8) Color {
	return Color{Mode: ColorModeRGB, R: r, G: g, B: b}
}

// IsDefault returns true if the color is the slot default.
func (c Color) IsDefault() bool {
	return c.Mode == ColorModeDefault
}

// Attr is a bitmask of SGR rendering attributes.
type Attr uint16

const (
	AttrBold Attr = 1 << iota
	AttrFaint
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrInverse
	AttrHidden
	AttrStrikeout
	AttrProtected
)

// Has returns true if all bits of flag are set.
func (a Attr) Has(flag Attr) bool {
	return a&flag == flag
}

// CellFlags marks wide-glyph occupancy for a cell.
type CellFlags uint8

const (
	// CellWide marks the leading cell of a two-column glyph.
	CellWide CellFlags = 1 << iota
	// CellSpacer marks the continuation cell of a two-column glyph. It
	// stores the same rune as the leading cell and is skipped when
	// rendering.
	CellSpacer
)

// Cell is one glyph slot of the screen matrix.
type Cell struct {
	Rune  rune
	Fg    Color
	Bg    Color
	Attrs Attr
	Flags CellFlags
}

// BlankCell returns the canonical empty cell: a space with default colors
// and no attributes.
func BlankCell() Cell {
	return Cell{Rune: ' '}
}

// IsBlank returns true if the cell equals the canonical empty cell.
func (c Cell) IsBlank() bool {
	return c == BlankCell()
}

// IsWide returns true for the leading cell of a two-column glyph.
func (c Cell) IsWide() bool {
	return c.Flags&CellWide != 0
}

// IsSpacer returns true for the continuation cell of a two-column glyph.
func (c Cell) IsSpacer() bool {
	return c.Flags&CellSpacer != 0
}
