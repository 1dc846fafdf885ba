package codec

import "encoding/binary"

// Reader consumes fixed-width big-endian fields from an untrusted buffer.
//
// Every read reports ok=false once the buffer is exhausted instead of
// panicking; callers translate that into their own decode error. Reads never
// advance past the end, so a failed read leaves the reader usable for
// diagnostics.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) U8() (uint8, bool) {
	if r.Remaining() < 1 {
		return 0, false
	}
	v := r.buf[r.off]
	r.off++
	return v, true
}

func (r *Reader) U16() (uint16, bool) {
	if r.Remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, true
}

func (r *Reader) U32() (uint32, bool) {
	if r.Remaining() < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, true
}

func (r *Reader) U64() (uint64, bool) {
	if r.Remaining() < 8 {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, true
}

func (r *Reader) I64() (int64, bool) {
	v, ok := r.U64()
	return int64(v), ok
}

// Bytes returns the next n bytes without copying. The slice aliases the
// reader's buffer; callers that retain it must copy.
func (r *Reader) Bytes(n int) ([]byte, bool) {
	if n < 0 || r.Remaining() < n {
		return nil, false
	}
	v := r.buf[r.off : r.off+n]
	r.off += n
	return v, true
}

// Vec reads a u8 length prefix followed by that many bytes.
func (r *Reader) Vec() ([]byte, bool) {
	n, ok := r.U8()
	if !ok {
		return nil, false
	}
	return r.Bytes(int(n))
}

// Done reports whether the reader consumed the buffer exactly. Engines use it
// to reject over-long payloads, not just truncated ones.
func (r *Reader) Done() bool {
	return r.Remaining() == 0
}

// Writer appends fixed-width big-endian fields. The zero value is ready to use.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) U16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) U32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *Writer) U64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *Writer) I64(v int64) {
	w.U64(uint64(v))
}

func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Vec writes a u8 length prefix followed by the bytes. Slices longer than 255
// are truncated by the caller's contract, never silently here; the write
// panics in that case because it is a programming error, not wire input.
func (w *Writer) Vec(b []byte) {
	if len(b) > 255 {
		panic("codec: vec longer than 255 bytes")
	}
	w.U8(uint8(len(b)))
	w.Raw(b)
}

func (w *Writer) Bytes() []byte {
	return w.buf
}
