package labels

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// Label size in pixels, sized for the 2in thermal label stock
const labelSize = 256

// RenderPNG encodes a print code into a scannable label image
func RenderPNG(printCode string) ([]byte, error) {
	if printCode == "" {
		return nil, fmt.Errorf("empty print code")
	}
	return qrcode.Encode(printCode, qrcode.Medium, labelSize)
}

// RenderDataURI renders a label as an inline data URI for preview screens
func RenderDataURI(printCode string) (string, error) {
	png, err := RenderPNG(printCode)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
