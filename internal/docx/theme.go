package docx

// TextStyle is a font size (half-points) and RGB hex color.
type TextStyle struct {
	Size  int
	Color string
}

// Theme controls document typography.
type Theme struct {
	Title TextStyle
	H1    TextStyle
	H2    TextStyle
	Body  TextStyle
	Font  string
}

// DefaultTheme matches the web UI palette.
var DefaultTheme = Theme{
	Title: TextStyle{Size: 48, Color: "4455AA"},
	H1:    TextStyle{Size: 32, Color: "223355"},
	H2:    TextStyle{Size: 26, Color: "334455"},
	Body:  TextStyle{Size: 24, Color: "111111"},
	Font:  "Calibri",
}
