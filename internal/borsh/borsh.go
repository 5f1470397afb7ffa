// Package borsh implements the little-endian binary encoding used for
// instruction payloads and account records.
//
// Layout rules:
//   - integers are fixed-width little-endian
//   - bool is one byte (0 or 1)
//   - string and []byte are a u32 length followed by the raw bytes
//   - fixed arrays are written as-is
//   - COption<T> is a u32 tag (0 or 1) followed by T, zero-filled when absent
package borsh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShortBuffer is returned when the input ends before a field is complete.
	ErrShortBuffer = errors.New("borsh: short buffer")

	// ErrInvalidBool is returned for a bool byte other than 0 or 1.
	ErrInvalidBool = errors.New("borsh: invalid bool")

	// ErrInvalidOption is returned for an option tag other than 0 or 1.
	ErrInvalidOption = errors.New("borsh: invalid option tag")

	// ErrTrailingBytes is returned by Decoder.Finish when input remains.
	ErrTrailingBytes = errors.New("borsh: trailing bytes")
)

// Encoder appends encoded values to an internal buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder with the given capacity hint.
func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded data.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) WriteU8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
		return
	}
	e.buf = append(e.buf, 0)
}

func (e *Encoder) WriteU32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) WriteU64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) WriteI64(v int64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v))
}

// WriteFixed writes raw bytes without a length prefix.
func (e *Encoder) WriteFixed(b []byte) {
	e.buf = append(e.buf, b...)
}

// WriteBytes writes a u32 length prefix followed by b.
func (e *Encoder) WriteBytes(b []byte) {
	e.WriteU32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) WriteString(s string) {
	e.WriteU32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteOption writes a COption tag and either v or len(v) zero bytes.
func (e *Encoder) WriteOption(present bool, v []byte) {
	if !present {
		e.WriteU32(0)
		e.buf = append(e.buf, make([]byte, len(v))...)
		return
	}
	e.WriteU32(1)
	e.buf = append(e.buf, v...)
}

// Decoder reads values from a byte slice. The first error sticks: once a
// read fails every later read returns zero values and Err reports the cause.
type Decoder struct {
	data []byte
	off  int
	err  error
}

// NewDecoder creates a decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first decoding error.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Finish returns the first decoding error, or ErrTrailingBytes if input remains.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, len(d.data)-d.off)
	}
	return nil
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, d.off, len(d.data)-d.off)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) ReadU8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) ReadBool() bool {
	b := d.take(1)
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		d.err = ErrInvalidBool
		return false
	}
}

func (d *Decoder) ReadU32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) ReadU64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *Decoder) ReadI64() int64 {
	return int64(d.ReadU64())
}

// ReadFixed reads exactly n bytes and returns a copy.
func (d *Decoder) ReadFixed(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// ReadBytes reads a u32 length prefix and that many bytes.
func (d *Decoder) ReadBytes() []byte {
	n := d.ReadU32()
	if d.err != nil {
		return nil
	}
	if uint64(n) > math.MaxInt32 {
		d.err = fmt.Errorf("%w: length %d", ErrShortBuffer, n)
		return nil
	}
	return d.ReadFixed(int(n))
}

func (d *Decoder) ReadString() string {
	return string(d.ReadBytes())
}

// ReadOption reads a COption tag followed by n bytes of payload.
func (d *Decoder) ReadOption(n int) (bool, []byte) {
	tag := d.ReadU32()
	v := d.ReadFixed(n)
	if d.err != nil {
		return false, nil
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, v
	default:
		d.err = ErrInvalidOption
		return false, nil
	}
}
