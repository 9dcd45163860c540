package steps

import (
	"bytes"
	"encoding/binary"
)

const (
	jpegSOI         = 0xD8
	jpegSOS         = 0xDA
	jpegEOI         = 0xD9
	jpegAPP1        = 0xE1
	exifOrientation = 0x0112
)

var exifHeader = []byte("Exif\x00\x00")

// jpegOrientation returns the EXIF orientation of a JPEG, or 0 when the
// file carries none. Values 2 through 8 mean the pixels must be flipped or
// rotated for display.
func jpegOrientation(data []byte) int {
	if len(data) < 4 || data[0] != 0xFF || data[1] != jpegSOI {
		return 0
	}
	for i := 2; i+4 <= len(data); {
		if data[i] != 0xFF {
			return 0
		}
		marker := data[i+1]
		if marker == jpegSOS || marker == jpegEOI {
			return 0
		}
		size := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if size < 2 || i+2+size > len(data) {
			return 0
		}
		segment := data[i+4 : i+2+size]
		if marker == jpegAPP1 && bytes.HasPrefix(segment, exifHeader) {
			return tiffOrientation(segment[len(exifHeader):])
		}
		i += 2 + size
	}
	return 0
}

// tiffOrientation reads the orientation tag from the first IFD of a TIFF
// structure.
func tiffOrientation(tiff []byte) int {
	if len(tiff) < 8 {
		return 0
	}
	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0
	}

	ifd := int(order.Uint32(tiff[4:8]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return 0
	}
	entries := int(order.Uint16(tiff[ifd : ifd+2]))
	for n := range entries {
		entry := ifd + 2 + n*12
		if entry+12 > len(tiff) {
			return 0
		}
		if order.Uint16(tiff[entry:entry+2]) == exifOrientation {
			return int(order.Uint16(tiff[entry+8 : entry+10]))
		}
	}
	return 0
}
