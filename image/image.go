// Package image assembles codegen's static-data and hardware-code words
// into a single flat binary suitable for loading into processor memory,
// and reads/writes that binary as a little-endian word stream.
package image

import (
	"encoding/binary"
	"io"
)

// Image is a flat word array: static data followed by hardware code.
// DataBreak is the index of the first code word; everything before it
// is data.
type Image struct {
	Words     []uint32
	DataBreak int
}

// Assemble concatenates data and code into a single Image. codegen has
// already built the entry jump into data[0] (see codegen.Generate's
// PostFixupJumps), so this is mechanical.
func Assemble(data, code []uint32) *Image {
	words := make([]uint32, 0, len(data)+len(code))
	words = append(words, data...)
	words = append(words, code...)
	return &Image{Words: words, DataBreak: len(data)}
}

// WriteTo encodes the image as a little-endian uint32 word stream.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 4*len(img.Words))
	for i, word := range img.Words {
		binary.LittleEndian.PutUint32(buf[4*i:], word)
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom decodes a little-endian uint32 word stream into the image.
// DataBreak is left at its current value — the caller must know it, or
// treat the whole image as code, since the binary format carries no
// data/code boundary marker.
func (img *Image) ReadFrom(r io.Reader) (int64, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	img.Words = make([]uint32, len(buf)/4)
	for i := range img.Words {
		img.Words[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}

	return int64(len(buf)), nil
}
