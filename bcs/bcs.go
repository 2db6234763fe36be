// Package bcs implements the canonical binary layout shared by slivers and
// blob metadata: little-endian fixed-width integers, ULEB128 lengths and enum
// tags, length-prefixed byte vectors and fixed byte arrays. There is exactly
// one valid encoding per value, which is what makes hashes over it stable.
package bcs

import (
	"encoding/binary"

	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

// MaxSequenceLength bounds every length prefix and enum tag.
const MaxSequenceLength = 1<<31 - 1

type Marshaler interface {
	MarshalBCS(e *Encoder)
}

type Unmarshaler interface {
	UnmarshalBCS(d *Decoder) error
}

// Marshal returns the canonical bytes of v.
func Marshal(v Marshaler) []byte {
	e := NewEncoder(0)
	v.MarshalBCS(e)
	return e.Bytes()
}

// Unmarshal decodes data into v and rejects trailing bytes.
func Unmarshal(data []byte, v Unmarshaler) error {
	d := NewDecoder(data)
	if err := v.UnmarshalBCS(d); err != nil {
		return err
	}
	return d.Finish()
}

// UlebSize returns how many bytes ULEB128 needs for v.
func UlebSize(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

type Encoder struct {
	buf []byte
}

func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

func (e *Encoder) U8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) U16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) U32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) U64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) ULEB128(v uint32) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

// Variant writes an enum tag.
func (e *Encoder) Variant(tag uint32) {
	e.ULEB128(tag)
}

// Bool writes 0 or 1.
func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
	} else {
		e.U8(0)
	}
}

// ByteVector writes a length-prefixed byte sequence.
func (e *Encoder) ByteVector(b []byte) {
	e.ULEB128(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// Fixed writes b with no length prefix.
func (e *Encoder) Fixed(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

type Decoder struct {
	data []byte
	off  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

func (d *Decoder) Offset() int {
	return d.off
}

// Finish reports an error when unread bytes remain.
func (d *Decoder) Finish() error {
	if d.Remaining() != 0 {
		return errors.Wrapf(wire_errors.MalformedEncoding, "%d trailing bytes at offset %d", d.Remaining(), d.off)
	}
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, errors.Wrapf(wire_errors.MalformedEncoding, "need %d bytes at offset %d, have %d", n, d.off, d.Remaining())
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) U8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) U16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ULEB128 reads a canonical ULEB128 value no larger than MaxSequenceLength.
func (d *Decoder) ULEB128() (uint32, error) {
	start := d.off
	var v uint64
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := d.U8()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if b == 0 && shift > 0 {
				return 0, errors.Wrapf(wire_errors.MalformedEncoding, "non-canonical uleb128 at offset %d", start)
			}
			if v > MaxSequenceLength {
				return 0, errors.Wrapf(wire_errors.MalformedEncoding, "uleb128 value %d out of range at offset %d", v, start)
			}
			return uint32(v), nil
		}
	}
	return 0, errors.Wrapf(wire_errors.MalformedEncoding, "uleb128 too long at offset %d", start)
}

// Variant reads an enum tag and checks it against the number of variants.
func (d *Decoder) Variant(numVariants uint32) (uint32, error) {
	start := d.off
	tag, err := d.ULEB128()
	if err != nil {
		return 0, err
	}
	if tag >= numVariants {
		return 0, errors.Wrapf(wire_errors.MalformedEncoding, "invalid enum tag %d at offset %d", tag, start)
	}
	return tag, nil
}

func (d *Decoder) Bool() (bool, error) {
	start := d.off
	b, err := d.U8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, errors.Wrapf(wire_errors.MalformedEncoding, "invalid bool %d at offset %d", b, start)
}

// ByteVector reads a length-prefixed byte sequence. The result is a copy.
func (d *Decoder) ByteVector() ([]byte, error) {
	n, err := d.ULEB128()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Fixed reads exactly len(dst) bytes into dst.
func (d *Decoder) Fixed(dst []byte) error {
	b, err := d.take(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
