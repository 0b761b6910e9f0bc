package bluing

import "encoding/binary"

// Cursor is a bounds-checked reader over a byte slice. Every read either
// consumes exactly what it asks for or returns a Truncated DecodeError and
// leaves the cursor untouched.
type Cursor struct {
	b   []byte
	off int
	// Base is added to offsets in errors, for cursors over a sub-slice.
	Base int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor { return &Cursor{b: b} }

// Offset is the number of bytes consumed so far.
func (c *Cursor) Offset() int { return c.off }

// Remaining is the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.b) - c.off }

// Rest returns the unread bytes without consuming them.
func (c *Cursor) Rest() []byte { return c.b[c.off:] }

func (c *Cursor) need(n int) error {
	if n < 0 || c.Remaining() < n {
		return NewDecodeError(Truncated, c.Base+c.off, "need %d bytes, have %d", n, c.Remaining())
	}
	return nil
}

// Bytes consumes n bytes. The result aliases the underlying buffer.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.b[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Skip consumes n bytes.
func (c *Cursor) Skip(n int) error {
	_, err := c.Bytes(n)
	return err
}

func (c *Cursor) U8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) U16BE() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *Cursor) U16LE() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) U32BE() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *Cursor) U32LE() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) U64BE() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *Cursor) U64LE() (uint64, error) {
	b, err := c.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
