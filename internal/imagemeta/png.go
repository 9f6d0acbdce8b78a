package imagemeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// writePNGText rewrites the PNG at path with one tEXt chunk per entry in
// texts, inserted after IHDR. Existing tEXt chunks with the same keywords
// are removed; pixel data (IDAT) is copied verbatim.
func writePNGText(path string, texts map[string]string) error {
	data, info, err := readWritable(path)
	if err != nil {
		return err
	}

	rebuilt, err := insertPNGText(data, texts)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := replaceFile(path, rebuilt, info.Mode().Perm()); err != nil {
		return err
	}
	preserveTimes(path, info.ModTime())
	return nil
}

// insertPNGText builds a new PNG byte stream with the text chunks in
// place. Pure; operates on in-memory bytes only.
func insertPNGText(data []byte, texts map[string]string) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("not a PNG file")
	}

	out := make([]byte, 0, len(data)+128)
	out = append(out, pngSignature...)

	// Deterministic chunk order regardless of map iteration
	keywords := make([]string, 0, len(texts))
	for k := range texts {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	replaced := make(map[string]bool, len(texts))
	for _, k := range keywords {
		replaced[k] = true
	}

	i := len(pngSignature)
	wroteText := false

	for i < len(data) {
		if i+8 > len(data) {
			return nil, fmt.Errorf("malformed PNG: truncated chunk header at offset %d", i)
		}
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		chunkType := string(data[i+4 : i+8])
		end := i + 8 + length + 4
		if end > len(data) {
			return nil, fmt.Errorf("malformed PNG: truncated %s chunk at offset %d", chunkType, i)
		}

		// Drop tEXt chunks we are about to rewrite
		if chunkType == "tEXt" {
			payload := data[i+8 : i+8+length]
			if sep := bytes.IndexByte(payload, 0); sep > 0 && replaced[string(payload[:sep])] {
				i = end
				continue
			}
		}

		out = append(out, data[i:end]...)

		if chunkType == "IHDR" && !wroteText {
			for _, keyword := range keywords {
				out = append(out, buildTextChunk(keyword, texts[keyword])...)
			}
			wroteText = true
		}

		i = end
	}

	if !wroteText {
		return nil, fmt.Errorf("malformed PNG: no IHDR chunk found")
	}
	return out, nil
}

// buildTextChunk assembles a tEXt chunk: length, type, keyword\0text, CRC.
func buildTextChunk(keyword, text string) []byte {
	payload := make([]byte, 0, len(keyword)+1+len(text))
	payload = append(payload, keyword...)
	payload = append(payload, 0)
	payload = append(payload, text...)

	chunk := make([]byte, 8, 8+len(payload)+4)
	binary.BigEndian.PutUint32(chunk[0:4], uint32(len(payload)))
	copy(chunk[4:8], "tEXt")
	chunk = append(chunk, payload...)

	crc := crc32.NewIEEE()
	_, _ = crc.Write(chunk[4:])
	chunk = binary.BigEndian.AppendUint32(chunk, crc.Sum32())
	return chunk
}
