package devserver

import (
	"bytes"
)

// imageMagicBytes maps accepted content types to their leading signature
var imageMagicBytes = map[string][]byte{
	"image/jpeg": {0xFF, 0xD8, 0xFF},
	"image/png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
}

// HEIFBrands contains the ftyp brands of HEIC/HEIF stills
var HEIFBrands = [][]byte{
	[]byte("heic"),
	[]byte("heix"),
	[]byte("heim"),
	[]byte("heis"),
	[]byte("mif1"),
	[]byte("msf1"),
}

// DetectImageType returns the content type of data based on its magic bytes,
// or "" when it is not one of the accepted image formats
func DetectImageType(data []byte) string {
	for contentType, magic := range imageMagicBytes {
		if bytes.HasPrefix(data, magic) {
			return contentType
		}
	}

	if isHEIF(data) {
		return "image/heic"
	}

	return ""
}

// isHEIF checks for an ISO BMFF ftyp box carrying a HEIF brand
func isHEIF(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}

	brand := data[8:12]
	for _, valid := range HEIFBrands {
		if bytes.Equal(brand, valid) {
			return true
		}
	}
	return false
}
