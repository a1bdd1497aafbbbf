package ber

import "bytes"

// ============================================================================
// BER Encoding - Element Tree → Wire Format
// ============================================================================

// Encode serializes the element tree to its BER wire form.
//
// Per X.690, every element is identifier octets + length octets + contents.
// Lengths are always definite: short form below 128, otherwise long form
// with the minimal number of length octets.
func (e Element) Encode() []byte {
	var buf bytes.Buffer
	e.AppendTo(&buf)
	return buf.Bytes()
}

// AppendTo serializes the element into buf.
func (e Element) AppendTo(buf *bytes.Buffer) {
	contents := e.contents()
	writeIdentifier(buf, e.Tag)
	writeLength(buf, len(contents))
	buf.Write(contents)
}

// EncodedLen returns the total wire size of the element without encoding it
// twice. contentsLen uses it to presize the contents buffer.
func (e Element) EncodedLen() int {
	n := e.contentsLen()
	return identifierLen(e.Tag) + lengthLen(n) + n
}

// contents returns the encoded contents octets: raw value for primitives,
// concatenated encoded children for constructed elements.
func (e Element) contents() []byte {
	if !e.Tag.Constructed && len(e.Children) == 0 {
		return e.Value
	}
	var buf bytes.Buffer
	buf.Grow(e.contentsLen())
	for _, child := range e.Children {
		child.AppendTo(&buf)
	}
	return buf.Bytes()
}

func (e Element) contentsLen() int {
	if !e.Tag.Constructed && len(e.Children) == 0 {
		return len(e.Value)
	}
	n := 0
	for _, child := range e.Children {
		n += child.EncodedLen()
	}
	return n
}

// writeIdentifier writes the identifier octets for a tag.
//
// Per X.690 8.1.2: numbers up to 30 fit the low five bits of the leading
// octet; larger numbers set those bits to 0x1F and follow with base-128
// octets, all but the last with the continuation bit set.
func writeIdentifier(buf *bytes.Buffer, t Tag) {
	lead := byte(t.Class)
	if t.Constructed {
		lead |= 0x20
	}
	if t.Number < 0x1F {
		buf.WriteByte(lead | byte(t.Number))
		return
	}
	buf.WriteByte(lead | 0x1F)
	// Base-128, big-endian, minimal width.
	var tmp [5]byte
	i := len(tmp)
	n := t.Number
	for {
		i--
		tmp[i] = byte(n & 0x7F)
		n >>= 7
		if n == 0 {
			break
		}
	}
	for j := i; j < len(tmp)-1; j++ {
		tmp[j] |= 0x80
	}
	buf.Write(tmp[i:])
}

func identifierLen(t Tag) int {
	if t.Number < 0x1F {
		return 1
	}
	n := 2
	for x := t.Number >> 7; x != 0; x >>= 7 {
		n++
	}
	return n
}

// writeLength writes definite-form length octets: short form below 128,
// otherwise 0x80|count followed by the big-endian length in the minimum
// number of octets.
func writeLength(buf *bytes.Buffer, n int) {
	if n < 0x80 {
		buf.WriteByte(byte(n))
		return
	}
	var tmp [8]byte
	i := len(tmp)
	for x := n; x != 0; x >>= 8 {
		i--
		tmp[i] = byte(x)
	}
	buf.WriteByte(0x80 | byte(len(tmp)-i))
	buf.Write(tmp[i:])
}

func lengthLen(n int) int {
	if n < 0x80 {
		return 1
	}
	c := 1
	for x := n; x != 0; x >>= 8 {
		c++
	}
	return c
}
