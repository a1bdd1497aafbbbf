package ber

// Element is one node of the structural tree: a primitive leaf carrying raw
// contents, or a constructed container of child elements. BER structures in
// LDAP are pure trees, so plain value semantics are enough; no sharing, no
// cycles.
type Element struct {
	Tag Tag

	// Value holds the contents octets of a primitive element. Nil for
	// constructed elements.
	Value []byte

	// Children holds the decoded contents of a constructed element, in
	// wire order.
	Children []Element
}

// Primitive builds a primitive element with the given tag and contents.
func Primitive(tag Tag, value []byte) Element {
	tag.Constructed = false
	return Element{Tag: tag, Value: value}
}

// Constructed builds a constructed element with the given tag and children.
func Constructed(tag Tag, children ...Element) Element {
	tag.Constructed = true
	return Element{Tag: tag, Children: children}
}

// NewBoolean builds a universal BOOLEAN. True encodes as 0xFF per X.690
// 11.1; the decoder accepts any non-zero octet.
func NewBoolean(v bool) Element {
	b := byte(0x00)
	if v {
		b = 0xFF
	}
	return Element{Tag: Boolean, Value: []byte{b}}
}

// NewInteger builds a universal INTEGER with minimal-length two's-complement
// contents.
func NewInteger(v int64) Element {
	return Element{Tag: Integer, Value: appendInt(nil, v)}
}

// NewEnumerated builds a universal ENUMERATED value.
func NewEnumerated(v int64) Element {
	return Element{Tag: Enumerated, Value: appendInt(nil, v)}
}

// NewOctetString builds a universal OCTET STRING. Contents pass through
// unaltered.
func NewOctetString(v []byte) Element {
	return Element{Tag: OctetString, Value: v}
}

// NewString builds a universal OCTET STRING from a Go string.
func NewString(s string) Element {
	return Element{Tag: OctetString, Value: []byte(s)}
}

// NewNull builds a universal NULL (zero-length contents).
func NewNull() Element {
	return Element{Tag: Null}
}

// NewSequence builds a universal SEQUENCE of the given children.
func NewSequence(children ...Element) Element {
	return Element{Tag: Sequence, Children: children}
}

// NewSet builds a universal SET of the given children.
func NewSet(children ...Element) Element {
	return Element{Tag: Set, Children: children}
}

// WithTag returns a copy of the element re-tagged with t, preserving the
// constructed flag appropriate for the contents. LDAP implicitly re-tags
// many universal types with context-specific numbers.
func (e Element) WithTag(t Tag) Element {
	t.Constructed = len(e.Children) > 0 || e.Tag.Constructed
	e.Tag = t
	return e
}

// Expect verifies the element carries the given tag.
func (e Element) Expect(t Tag) error {
	if e.Tag != t {
		return &TagError{Expected: t, Got: e.Tag}
	}
	return nil
}

// Bool interprets the element as a BOOLEAN. Any non-zero contents octet is
// true; some servers (notably AD) encode true as 0x01 instead of 0xFF.
func (e Element) Bool() (bool, error) {
	if len(e.Value) != 1 {
		return false, ErrInvalidBoolean
	}
	return e.Value[0] != 0x00, nil
}

// Int64 interprets the element contents as a two's-complement INTEGER.
// Contents wider than eight octets overflow.
func (e Element) Int64() (int64, error) {
	if len(e.Value) > 8 {
		return 0, ErrIntegerOverflow
	}
	if len(e.Value) == 0 {
		return 0, ErrTruncated
	}
	var n int64
	for _, b := range e.Value {
		n = n<<8 | int64(b)
	}
	// Sign-extend from the encoded width.
	shift := 64 - uint(len(e.Value))*8
	return n << shift >> shift, nil
}

// Uint32 interprets the element as a non-negative INTEGER fitting uint32.
// LDAP message IDs and result codes live in this range.
func (e Element) Uint32() (uint32, error) {
	n, err := e.Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xFFFFFFFF {
		return 0, ErrIntegerOverflow
	}
	return uint32(n), nil
}

// Bytes returns the contents octets of a primitive element.
func (e Element) Bytes() []byte { return e.Value }

// Str returns the contents octets as a string.
func (e Element) Str() string { return string(e.Value) }

// IntContents returns the minimal two's-complement contents octets of v
// without a header. AbandonRequest carries its target message ID this way,
// as the contents of the application tag itself.
func IntContents(v int64) []byte {
	return appendInt(nil, v)
}

// appendInt appends the minimal-length two's-complement encoding of v.
// No redundant leading 0x00 on positives, no redundant 0xFF on negatives
// (X.690 8.3.2).
func appendInt(dst []byte, v int64) []byte {
	n := 1
	for x := v; x > 127; x >>= 8 {
		n++
	}
	for x := v; x < -128; x >>= 8 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>uint(i*8)))
	}
	return dst
}
