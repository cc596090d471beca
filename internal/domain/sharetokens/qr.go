package sharetokens

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 300

// QRDataURL renderiza la URL de compartir como PNG embebible (data URL),
// para mostrarla o imprimirla sin otro round-trip. La URL lleva el token
// crudo, así que el QR hereda su sensibilidad: se genera al emitir y no se
// persiste.
func QRDataURL(shareURL string) (string, error) {
	png, err := qrcode.Encode(shareURL, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
