package render

import (
	"strconv"

	"pkt.systems/joblog/schema"
)

type rgb struct {
	r int
	g int
	b int
}

type terminalTheme struct {
	Name         schema.ThemeName
	PassedBG     rgb
	FailedBG     rgb
	RunningBG    rgb
	FetchingBG   rgb
	BadgeFG      rgb
	DirectiveFG  rgb
	LineNumberFG rgb
	TimestampFG  rgb
	SpinnerFG    rgb
	MessageFG    rgb
	// Palette maps SGR 30-37 to 0-7 and 90-97 to 8-15.
	Palette [16]rgb
}

const (
	ansiReset     = "\x1b[0m"
	ansiBold      = "\x1b[1m"
	ansiDim       = "\x1b[2m"
	ansiItalic    = "\x1b[3m"
	ansiUnderline = "\x1b[4m"
)

var terminalThemes = map[schema.ThemeName]terminalTheme{
	"outrun": {
		Name:         "outrun",
		PassedBG:     rgb{r: 0, g: 168, b: 120},
		FailedBG:     rgb{r: 255, g: 56, b: 100},
		RunningBG:    rgb{r: 110, g: 136, b: 255},
		FetchingBG:   rgb{r: 84, g: 92, b: 110},
		BadgeFG:      rgb{r: 10, g: 13, b: 23},
		DirectiveFG:  rgb{r: 240, g: 241, b: 255},
		LineNumberFG: rgb{r: 96, g: 104, b: 128},
		TimestampFG:  rgb{r: 154, g: 163, b: 178},
		SpinnerFG:    rgb{r: 255, g: 91, b: 189},
		MessageFG:    rgb{r: 255, g: 107, b: 107},
		Palette: [16]rgb{
			{r: 32, g: 8, b: 56}, {r: 255, g: 56, b: 100}, {r: 0, g: 229, b: 160}, {r: 255, g: 214, b: 0},
			{r: 0, g: 170, b: 255}, {r: 255, g: 91, b: 189}, {r: 0, g: 229, b: 255}, {r: 220, g: 222, b: 240},
			{r: 96, g: 104, b: 128}, {r: 255, g: 107, b: 107}, {r: 112, g: 255, b: 190}, {r: 255, g: 236, b: 120},
			{r: 112, g: 214, b: 255}, {r: 255, g: 150, b: 220}, {r: 150, g: 240, b: 255}, {r: 255, g: 255, b: 255},
		},
	},
	"gruvbox": {
		Name:         "gruvbox",
		PassedBG:     rgb{r: 121, g: 116, b: 14},
		FailedBG:     rgb{r: 157, g: 0, b: 6},
		RunningBG:    rgb{r: 7, g: 102, b: 120},
		FetchingBG:   rgb{r: 146, g: 131, b: 116},
		BadgeFG:      rgb{r: 251, g: 241, b: 199},
		DirectiveFG:  rgb{r: 60, g: 56, b: 54},
		LineNumberFG: rgb{r: 168, g: 153, b: 132},
		TimestampFG:  rgb{r: 124, g: 111, b: 100},
		SpinnerFG:    rgb{r: 175, g: 58, b: 3},
		MessageFG:    rgb{r: 157, g: 0, b: 6},
		Palette: [16]rgb{
			{r: 40, g: 40, b: 40}, {r: 204, g: 36, b: 29}, {r: 152, g: 151, b: 26}, {r: 215, g: 153, b: 33},
			{r: 69, g: 133, b: 136}, {r: 177, g: 98, b: 134}, {r: 104, g: 157, b: 106}, {r: 124, g: 111, b: 100},
			{r: 146, g: 131, b: 116}, {r: 157, g: 0, b: 6}, {r: 121, g: 116, b: 14}, {r: 181, g: 118, b: 20},
			{r: 7, g: 102, b: 120}, {r: 143, g: 63, b: 113}, {r: 66, g: 123, b: 88}, {r: 60, g: 56, b: 54},
		},
	},
	"tokyo-midnight": {
		Name:         "tokyo-midnight",
		PassedBG:     rgb{r: 158, g: 206, b: 106},
		FailedBG:     rgb{r: 247, g: 118, b: 142},
		RunningBG:    rgb{r: 122, g: 162, b: 247},
		FetchingBG:   rgb{r: 86, g: 95, b: 137},
		BadgeFG:      rgb{r: 26, g: 27, b: 38},
		DirectiveFG:  rgb{r: 192, g: 202, b: 245},
		LineNumberFG: rgb{r: 86, g: 95, b: 137},
		TimestampFG:  rgb{r: 127, g: 133, b: 163},
		SpinnerFG:    rgb{r: 187, g: 154, b: 247},
		MessageFG:    rgb{r: 247, g: 118, b: 142},
		Palette: [16]rgb{
			{r: 21, g: 22, b: 30}, {r: 247, g: 118, b: 142}, {r: 158, g: 206, b: 106}, {r: 224, g: 175, b: 104},
			{r: 122, g: 162, b: 247}, {r: 187, g: 154, b: 247}, {r: 125, g: 207, b: 255}, {r: 169, g: 177, b: 214},
			{r: 65, g: 72, b: 104}, {r: 255, g: 137, b: 157}, {r: 185, g: 242, b: 124}, {r: 255, g: 158, b: 100},
			{r: 125, g: 166, b: 255}, {r: 199, g: 167, b: 255}, {r: 13, g: 185, b: 215}, {r: 192, g: 202, b: 245},
		},
	},
}

func themeForName(name schema.ThemeName) terminalTheme {
	if name == "" {
		name = schema.DefaultTheme
	}
	if theme, ok := terminalThemes[name]; ok {
		return theme
	}
	return terminalThemes[schema.DefaultTheme]
}

// ThemeForStyle picks the dark or light theme of a style decision.
// A supported explicit name wins.
func ThemeForStyle(style StyleDecision, name schema.ThemeName) schema.ThemeName {
	if normalized, ok := schema.NormalizeThemeName(string(name)); ok {
		return normalized
	}
	if style.Dark {
		return schema.DefaultTheme
	}
	return schema.LightTheme
}

func (t terminalTheme) fg(code int) (rgb, bool) {
	switch {
	case code >= 30 && code <= 37:
		return t.Palette[code-30], true
	case code >= 90 && code <= 97:
		return t.Palette[8+code-90], true
	}
	return rgb{}, false
}

func ansiFgRGB(c rgb) string {
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

func ansiBgRGB(c rgb) string {
	return "\x1b[48;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}
