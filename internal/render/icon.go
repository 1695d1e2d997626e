// Package render draws the pen gauge icon and the text status shown next to it
package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/pen-tracker/internal/engine"
	"github.com/mrcode/pen-tracker/internal/models"
)

const (
	statusNormal   = "normal"
	statusLow      = "low"
	statusFinished = "finished"
)

// ActivePen returns the newest pen that is not finished
func ActivePen(report *engine.Report) (*engine.PenStatus, bool) {
	if report == nil || report.Analysis == nil {
		return nil, false
	}
	for i := range report.Pens {
		if !report.Pens[i].Finished {
			return &report.Pens[i], true
		}
	}
	return nil, false
}

// PenIcon draws a 64x64 PNG gauge for the pen: background colored by content
// status, remaining mg as text and a fill bar. A nil pen draws a gray
// placeholder.
func PenIcon(ps *engine.PenStatus, settings *models.Settings) ([]byte, error) {
	const (
		width  = 64
		height = 64
		radius = 16
	)

	dc := gg.NewContext(width, height)

	// Transparent background
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	r, g, b := parseHexColor(statusColor(ps, settings))
	dc.SetRGB255(int(r), int(g), int(b))
	dc.DrawRoundedRectangle(0, 0, width, height, radius)
	dc.Fill()

	// Text color (black or white depending on brightness)
	brightness := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	var fg color.Color = color.White
	if brightness > 128 {
		fg = color.Black
	}
	dc.SetColor(fg)

	text := "--"
	if ps != nil {
		text = formatMg(ps.RemainingMg)
	}
	if err := loadFont(dc, 26); err != nil {
		return nil, fmt.Errorf("load font: %w", err)
	}
	dc.DrawStringAnchored(text, width/2, height/2-8, 0.5, 0.5)

	// Fill bar for the remaining content
	const (
		barX = 8
		barY = height - 18
		barW = width - 16
		barH = 8
	)
	dc.SetLineWidth(1.5)
	dc.DrawRectangle(barX, barY, barW, barH)
	dc.Stroke()
	if ps != nil && ps.Pen.TotalCapacity > 0 {
		frac := ps.RemainingMg / ps.Pen.TotalCapacity
		dc.DrawRectangle(barX, barY, barW*frac, barH)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteIcon renders the active pen of report to path. A ".ico" extension
// produces a Windows icon, anything else PNG.
func WriteIcon(path string, report *engine.Report, settings *models.Settings) error {
	ps, _ := ActivePen(report)
	data, err := PenIcon(ps, settings)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".ico") {
		data, err = pngToICO(data)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create icon dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// loadFont helper to load font safely
func loadFont(dc *gg.Context, size float64) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return err
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	return nil
}

// contentStatus classifies the pen using the configured low-content threshold
func contentStatus(ps *engine.PenStatus, settings *models.Settings) string {
	if ps == nil {
		return ""
	}
	if settings == nil {
		settings = models.DefaultSettings()
	}
	return settings.GetContentStatus(ps.UsagePercent)
}

// statusColor returns the background color for the pen's content status
func statusColor(ps *engine.PenStatus, settings *models.Settings) string {
	switch contentStatus(ps, settings) {
	case statusFinished:
		return "#ef4444" // Red
	case statusLow:
		return "#f97316" // Orange
	case statusNormal:
		return "#4ade80" // Green
	default:
		return "#808080" // Gray for no pen
	}
}

func formatMg(v float64) string {
	if v >= 10 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

// pngToICO wraps PNG data in a single-image ICO container:
// ICONDIR header (6 bytes), one ICONDIRENTRY (16 bytes), then the PNG data
func pngToICO(pngData []byte) ([]byte, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}

	var buf bytes.Buffer
	// Reserved, type (1 = ICO), image count
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})

	// Width and height, 0 means 256
	buf.WriteByte(icoDim(cfg.Width))
	buf.WriteByte(icoDim(cfg.Height))
	// No palette, reserved
	buf.WriteByte(0)
	buf.WriteByte(0)
	// Color planes, bits per pixel
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	// #nosec G115 -- icon PNGs are tiny
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	// Offset to image data
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22))

	buf.Write(pngData)
	return buf.Bytes(), nil
}

func icoDim(v int) byte {
	if v >= 256 {
		return 0
	}
	return byte(v)
}
