package imgproc

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"sort"
)

// Metadata is the opaque information carried from an upload to its result.
// It is read once at decode time and written back unchanged at encode time.
type Metadata struct {
	EXIF []byte // TIFF-structured EXIF payload, without the "Exif\0\0" prefix
	ICC  []byte // raw ICC colour profile
}

// Empty reports whether there is nothing to reattach.
func (m Metadata) Empty() bool { return len(m.EXIF) == 0 && len(m.ICC) == 0 }

var (
	jpegSOI     = []byte{0xff, 0xd8}
	pngSig      = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	exifPrefix  = []byte("Exif\x00\x00")
	iccPrefix   = []byte("ICC_PROFILE\x00")
	errNotJPEG  = errors.New("imgproc: not a jpeg stream")
	errNotPNG   = errors.New("imgproc: not a png stream")
	errTooLarge = errors.New("imgproc: metadata does not fit a segment")
)

const (
	maxSegmentPayload = 0xffff - 2
	maxICCChunk       = maxSegmentPayload - 14
	orientationTag    = 0x0112
)

// ExtractMetadata reads EXIF and ICC data from JPEG and PNG uploads. Other
// containers, and malformed streams, yield an empty Metadata. The EXIF
// orientation is reset to 1 because Decode already rotates the pixels.
func ExtractMetadata(data []byte) Metadata {
	m := rawMetadata(data)
	if len(m.EXIF) > 0 {
		m.EXIF = resetOrientation(m.EXIF)
	}
	return m
}

func rawMetadata(data []byte) Metadata {
	switch {
	case bytes.HasPrefix(data, jpegSOI):
		return jpegMetadata(data)
	case bytes.HasPrefix(data, pngSig):
		return pngMetadata(data)
	}
	return Metadata{}
}

func jpegMetadata(data []byte) Metadata {
	var m Metadata
	iccChunks := map[int][]byte{}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xff {
			break
		}
		marker := data[pos+1]
		if marker == 0xd8 || marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			pos += 2
			continue
		}
		if marker == 0xda || marker == 0xd9 {
			break
		}
		n := int(binary.BigEndian.Uint16(data[pos+2:]))
		if n < 2 || pos+2+n > len(data) {
			break
		}
		payload := data[pos+4 : pos+2+n]
		switch {
		case marker == 0xe1 && bytes.HasPrefix(payload, exifPrefix) && m.EXIF == nil:
			m.EXIF = append([]byte(nil), payload[len(exifPrefix):]...)
		case marker == 0xe2 && bytes.HasPrefix(payload, iccPrefix) && len(payload) > len(iccPrefix)+2:
			seq := int(payload[len(iccPrefix)])
			iccChunks[seq] = payload[len(iccPrefix)+2:]
		}
		pos += 2 + n
	}
	if len(iccChunks) > 0 {
		seqs := make([]int, 0, len(iccChunks))
		for s := range iccChunks {
			seqs = append(seqs, s)
		}
		sort.Ints(seqs)
		for _, s := range seqs {
			m.ICC = append(m.ICC, iccChunks[s]...)
		}
	}
	return m
}

func pngMetadata(data []byte) Metadata {
	var m Metadata
	pos := len(pngSig)
	for pos+8 <= len(data) {
		n := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		if n < 0 || pos+12+n > len(data) {
			break
		}
		body := data[pos+8 : pos+8+n]
		switch typ {
		case "eXIf":
			m.EXIF = append([]byte(nil), body...)
		case "iCCP":
			if icc, err := inflateICC(body); err == nil {
				m.ICC = icc
			}
		case "IDAT", "IEND":
			return m
		}
		pos += 12 + n
	}
	return m
}

func inflateICC(body []byte) ([]byte, error) {
	nul := bytes.IndexByte(body, 0)
	if nul < 0 || nul+2 > len(body) {
		return nil, errNotPNG
	}
	zr, err := zlib.NewReader(bytes.NewReader(body[nul+2:]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// orientationValue locates the IFD0 orientation value in exif and returns
// its byte offset.
func orientationValue(exif []byte) (binary.ByteOrder, int, bool) {
	if len(exif) < 8 {
		return nil, 0, false
	}
	var order binary.ByteOrder
	switch string(exif[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, false
	}
	ifd := int(order.Uint32(exif[4:]))
	if ifd < 8 || ifd+2 > len(exif) {
		return nil, 0, false
	}
	count := int(order.Uint16(exif[ifd:]))
	for i := 0; i < count; i++ {
		e := ifd + 2 + i*12
		if e+12 > len(exif) {
			break
		}
		if order.Uint16(exif[e:]) == orientationTag && order.Uint16(exif[e+2:]) == 3 {
			return order, e + 8, true
		}
	}
	return nil, 0, false
}

// exifOrientation returns the IFD0 orientation in [1, 8], or 1 when exif has
// none.
func exifOrientation(exif []byte) int {
	order, off, ok := orientationValue(exif)
	if !ok {
		return 1
	}
	if v := int(order.Uint16(exif[off:])); v >= 1 && v <= 8 {
		return v
	}
	return 1
}

// resetOrientation returns a copy of exif whose IFD0 orientation is 1.
func resetOrientation(exif []byte) []byte {
	out := append([]byte(nil), exif...)
	if order, off, ok := orientationValue(out); ok {
		order.PutUint16(out[off:], 1)
	}
	return out
}

func embedMetadata(encoded []byte, format Format, m Metadata) ([]byte, error) {
	switch format {
	case FormatJPEG:
		return embedJPEG(encoded, m)
	case FormatPNG:
		return embedPNG(encoded, m)
	}
	return encoded, nil
}

func embedJPEG(encoded []byte, m Metadata) ([]byte, error) {
	if !bytes.HasPrefix(encoded, jpegSOI) {
		return nil, errNotJPEG
	}
	var segs bytes.Buffer
	if len(m.EXIF) > 0 {
		payload := append(append([]byte(nil), exifPrefix...), m.EXIF...)
		if len(payload) > maxSegmentPayload {
			return nil, errTooLarge
		}
		writeSegment(&segs, 0xe1, payload)
	}
	if len(m.ICC) > 0 {
		total := (len(m.ICC) + maxICCChunk - 1) / maxICCChunk
		if total > 255 {
			return nil, errTooLarge
		}
		for i := 0; i < total; i++ {
			end := min((i+1)*maxICCChunk, len(m.ICC))
			payload := append(append([]byte(nil), iccPrefix...), byte(i+1), byte(total))
			payload = append(payload, m.ICC[i*maxICCChunk:end]...)
			writeSegment(&segs, 0xe2, payload)
		}
	}
	out := make([]byte, 0, len(encoded)+segs.Len())
	out = append(out, jpegSOI...)
	out = append(out, segs.Bytes()...)
	return append(out, encoded[len(jpegSOI):]...), nil
}

func writeSegment(w *bytes.Buffer, marker byte, payload []byte) {
	w.Write([]byte{0xff, marker})
	_ = binary.Write(w, binary.BigEndian, uint16(len(payload)+2))
	w.Write(payload)
}

func embedPNG(encoded []byte, m Metadata) ([]byte, error) {
	const ihdrEnd = 8 + 8 + 13 + 4
	if !bytes.HasPrefix(encoded, pngSig) || len(encoded) < ihdrEnd {
		return nil, errNotPNG
	}
	var chunks bytes.Buffer
	if len(m.ICC) > 0 {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(m.ICC); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		body := append([]byte("icc\x00\x00"), z.Bytes()...)
		writeChunk(&chunks, "iCCP", body)
	}
	if len(m.EXIF) > 0 {
		writeChunk(&chunks, "eXIf", m.EXIF)
	}
	out := make([]byte, 0, len(encoded)+chunks.Len())
	out = append(out, encoded[:ihdrEnd]...)
	out = append(out, chunks.Bytes()...)
	return append(out, encoded[ihdrEnd:]...), nil
}

func writeChunk(w *bytes.Buffer, typ string, body []byte) {
	_ = binary.Write(w, binary.BigEndian, uint32(len(body)))
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(body)
	w.WriteString(typ)
	w.Write(body)
	_ = binary.Write(w, binary.BigEndian, crc.Sum32())
}
