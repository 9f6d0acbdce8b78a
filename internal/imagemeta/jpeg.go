package imagemeta

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
)

const (
	jpegMarkerPrefix = 0xFF
	markerSOI        = 0xD8
	markerEOI        = 0xD9
	markerSOS        = 0xDA
	markerCOM        = 0xFE
	markerAPP0       = 0xE0
	markerAPP15      = 0xEF
)

// writeJPEGComment rewrites the JPEG at path with a COM segment carrying
// the comment, placed after the leading APPn run so EXIF (APP1) stays
// first. COM segments previously written by this tool are replaced;
// foreign comments and all other segments are copied verbatim.
func writeJPEGComment(path, comment string) error {
	data, info, err := readWritable(path)
	if err != nil {
		return err
	}

	if len(data) < 4 || data[0] != jpegMarkerPrefix || data[1] != markerSOI {
		return fmt.Errorf("%s is not a JPEG file", path)
	}

	// Remember whether the original carried decodable EXIF so the rewrite
	// can be verified not to have destroyed it.
	_, exifErr := exif.Decode(bytes.NewReader(data))
	hadExif := exifErr == nil

	rebuilt, err := insertJPEGComment(data, comment)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if hadExif {
		if _, err := exif.Decode(bytes.NewReader(rebuilt)); err != nil {
			return fmt.Errorf("refusing to write %s: rewrite would corrupt EXIF: %w", path, err)
		}
	}

	if err := replaceFile(path, rebuilt, info.Mode().Perm()); err != nil {
		return err
	}
	preserveTimes(path, info.ModTime())
	return nil
}

// insertJPEGComment builds a new JPEG byte stream with the comment
// segment in place. Pure; operates on in-memory bytes only.
func insertJPEGComment(data []byte, comment string) ([]byte, error) {
	out := make([]byte, 0, len(data)+len(comment)+4)
	out = append(out, data[0], data[1]) // SOI

	i := 2
	inserted := false

	appendComment := func() {
		segment := make([]byte, 4+len(comment))
		segment[0] = jpegMarkerPrefix
		segment[1] = markerCOM
		binary.BigEndian.PutUint16(segment[2:], uint16(len(comment)+2))
		copy(segment[4:], comment)
		out = append(out, segment...)
		inserted = true
	}

	for i+1 < len(data) {
		if data[i] != jpegMarkerPrefix {
			return nil, fmt.Errorf("malformed JPEG: expected marker at offset %d", i)
		}
		marker := data[i+1]

		// Entropy-coded data follows SOS; copy the remainder verbatim.
		if marker == markerSOS {
			if !inserted {
				appendComment()
			}
			out = append(out, data[i:]...)
			return out, nil
		}

		if marker == markerEOI {
			if !inserted {
				appendComment()
			}
			out = append(out, data[i:]...)
			return out, nil
		}

		if i+4 > len(data) {
			return nil, fmt.Errorf("malformed JPEG: truncated segment at offset %d", i)
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		end := i + 2 + segLen
		if segLen < 2 || end > len(data) {
			return nil, fmt.Errorf("malformed JPEG: bad segment length at offset %d", i)
		}

		isAPPn := marker >= markerAPP0 && marker <= markerAPP15
		isOurComment := marker == markerCOM && bytes.HasPrefix(data[i+4:end], []byte(tagPrefix))

		if !isAPPn && !inserted {
			// End of the leading APPn run: our comment goes here.
			appendComment()
		}

		if !isOurComment {
			out = append(out, data[i:end]...)
		}
		i = end
	}

	return nil, fmt.Errorf("malformed JPEG: no SOS or EOI marker found")
}
