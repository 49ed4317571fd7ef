// Package dcmtest собирает минимальные DICOM-файлы (Explicit VR Little Endian) для тестов.
package dcmtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ctImageStorage         = "1.2.840.10008.5.1.4.1.1.2"
)

// Scan описание синтетического снимка
type Scan struct {
	Rows        int
	Cols        int
	Pixels      []int16 // построчно
	WithRescale bool
	Slope       float64
	Intercept   float64
	NoPixelData bool
}

// Square снимок size x size с центрированным квадратом side x side.
func Square(size, side int, foreground, background int16) Scan {
	pixels := make([]int16, size*size)
	start := (size - side) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := background
			if x >= start && x < start+side && y >= start && y < start+side {
				v = foreground
			}
			pixels[y*size+x] = v
		}
	}
	return Scan{Rows: size, Cols: size, Pixels: pixels, WithRescale: true, Slope: 1, Intercept: 0}
}

// Build кодирует снимок в байты DICOM Part 10.
func Build(s Scan) []byte {
	var meta bytes.Buffer
	writeElement(&meta, 0x0002, 0x0002, "UI", uid(ctImageStorage))
	writeElement(&meta, 0x0002, 0x0010, "UI", uid(explicitVRLittleEndian))

	var out bytes.Buffer
	out.Write(make([]byte, 128))
	out.WriteString("DICM")
	writeElement(&out, 0x0002, 0x0000, "UL", u32(uint32(meta.Len())))
	out.Write(meta.Bytes())

	writeElement(&out, 0x0028, 0x0002, "US", u16(1))
	writeElement(&out, 0x0028, 0x0010, "US", u16(uint16(s.Rows)))
	writeElement(&out, 0x0028, 0x0011, "US", u16(uint16(s.Cols)))
	writeElement(&out, 0x0028, 0x0100, "US", u16(16))
	writeElement(&out, 0x0028, 0x0101, "US", u16(16))
	writeElement(&out, 0x0028, 0x0102, "US", u16(15))
	writeElement(&out, 0x0028, 0x0103, "US", u16(1))
	if s.WithRescale {
		writeElement(&out, 0x0028, 0x1052, "DS", ds(s.Intercept))
		writeElement(&out, 0x0028, 0x1053, "DS", ds(s.Slope))
	}
	if !s.NoPixelData {
		pix := make([]byte, 2*len(s.Pixels))
		for i, v := range s.Pixels {
			binary.LittleEndian.PutUint16(pix[2*i:], uint16(v))
		}
		writeElement(&out, 0x7FE0, 0x0010, "OW", pix)
	}
	return out.Bytes()
}

// WriteFile пишет снимок во временную директорию теста и возвращает путь.
func WriteFile(t testing.TB, name string, s Scan) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(s), 0o644); err != nil {
		t.Fatalf("write dicom: %v", err)
	}
	return path
}

func writeElement(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	_ = binary.Write(buf, binary.LittleEndian, group)
	_ = binary.Write(buf, binary.LittleEndian, element)
	buf.WriteString(vr)
	switch vr {
	case "OB", "OW", "OF", "SQ", "UT", "UN":
		buf.Write([]byte{0, 0})
		_ = binary.Write(buf, binary.LittleEndian, uint32(len(value)))
	default:
		_ = binary.Write(buf, binary.LittleEndian, uint16(len(value)))
	}
	buf.Write(value)
}

func uid(s string) []byte {
	if len(s)%2 == 1 {
		s += "\x00"
	}
	return []byte(s)
}

func ds(v float64) []byte {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if len(s)%2 == 1 {
		s += " "
	}
	return []byte(s)
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
