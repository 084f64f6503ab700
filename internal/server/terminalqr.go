package server

import (
	"fmt"
	"io"
	"strings"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// PrintTerminalQR writes content as a QR code made of half-block characters
// so a phone can open the scanner page straight from the server console.
func PrintTerminalQR(w io.Writer, content string) error {
	if content == "" {
		return fmt.Errorf("empty content")
	}
	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_MARGIN: 2,
	}
	// A zero size yields one pixel per module.
	m, err := qrcode.NewQRCodeWriter().Encode(content, gozxing.BarcodeFormat_QR_CODE, 0, 0, hints)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	w0, h0 := m.GetWidth(), m.GetHeight()
	dark := func(x, y int) bool { return y < h0 && m.Get(x, y) }

	var sb strings.Builder
	// Two module rows per text line. Dark modules print as blanks and light
	// ones as blocks, which reads correctly on a dark terminal.
	for y := 0; y < h0; y += 2 {
		for x := 0; x < w0; x++ {
			top, bottom := dark(x, y), dark(x, y+1)
			switch {
			case top && bottom:
				sb.WriteRune(' ')
			case top:
				sb.WriteRune('▄')
			case bottom:
				sb.WriteRune('▀')
			default:
				sb.WriteRune('█')
			}
		}
		sb.WriteByte('\n')
	}
	_, err = io.WriteString(w, sb.String())
	return err
}
