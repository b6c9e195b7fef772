package deck

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type entry struct {
	name  string
	count int
}

// entries groups picks by card in first-pick order. Missed picks are
// reported separately.
func (d *Deck) entries() []entry {
	var out []entry
	index := make(map[int]int)
	for _, p := range d.picks {
		if p.IsUnknown() {
			continue
		}
		if i, ok := index[p.ID]; ok {
			out[i].count++
			continue
		}
		index[p.ID] = len(out)
		out = append(out, entry{name: p.Name, count: 1})
	}
	return out
}

func (d *Deck) lines(heroName string) []string {
	if heroName == "" {
		heroName = "Unknown class"
	}
	lines := []string{fmt.Sprintf("%s (%d/%d)", heroName, len(d.picks), Size)}
	for _, e := range d.entries() {
		lines = append(lines, fmt.Sprintf("%dx %s", e.count, e.name))
	}
	if missed := d.MissedPicks(); missed > 0 {
		lines = append(lines, fmt.Sprintf("%d missed pick(s)", missed))
	}
	return lines
}

// CreateTextRepresentation renders the deck as plain text, one card per
// line, suitable for a paste host
func (d *Deck) CreateTextRepresentation(heroName string) []byte {
	return []byte(strings.Join(d.lines(heroName), "\n") + "\n")
}

const (
	imageWidth   = 320
	imageMargin  = 8
	imageLineGap = 16
)

// CreateImageRepresentation renders the same listing as a PNG
func (d *Deck) CreateImageRepresentation(heroName string) ([]byte, error) {
	lines := d.lines(heroName)
	height := 2*imageMargin + len(lines)*imageLineGap

	img := image.NewRGBA(image.Rect(0, 0, imageWidth, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 24, G: 24, B: 32, A: 255}), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 240, G: 220, B: 160, A: 255}),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(imageMargin, imageMargin+(i+1)*imageLineGap-4)
		drawer.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode deck image: %w", err)
	}
	return buf.Bytes(), nil
}
