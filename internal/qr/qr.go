package qr

import (
	qrcode "github.com/skip2/go-qrcode"
)

// Encode renders a payload as a 256px PNG.
func Encode(payload string) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, 256)
}
