package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// LEDMapperTheme darkens the default theme so the camera preview and the
// painted LED dots stand out.
type LEDMapperTheme struct{}

var _ fyne.Theme = (*LEDMapperTheme)(nil)

func (t *LEDMapperTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0x00, G: 0xB0, B: 0xFF, A: 0xFF}
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0xFF, G: 0x6D, B: 0x00, A: 0x80} // ROI rubber band
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *LEDMapperTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *LEDMapperTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *LEDMapperTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
