package ldap

import (
	"fmt"
	"strings"

	"github.com/marmos91/dittodir/internal/protocol/ber"
)

// Filter CHOICE tag numbers per RFC 4511 4.5.1.7.
const (
	filterAnd             uint32 = 0
	filterOr              uint32 = 1
	filterNot             uint32 = 2
	filterEqualityMatch   uint32 = 3
	filterSubstrings      uint32 = 4
	filterGreaterOrEqual  uint32 = 5
	filterLessOrEqual     uint32 = 6
	filterPresent         uint32 = 7
	filterApproxMatch     uint32 = 8
	filterExtensibleMatch uint32 = 9
)

// Filter is one node of a search filter tree. Build trees directly from the
// concrete types below, or compile them from RFC 4515 strings with
// CompileFilter.
type Filter interface {
	encode() ber.Element

	// String renders the filter in RFC 4515 form with values escaped.
	String() string
}

// AndFilter matches when every sub-filter matches.
type AndFilter struct {
	Filters []Filter
}

// OrFilter matches when any sub-filter matches.
type OrFilter struct {
	Filters []Filter
}

// NotFilter negates one sub-filter.
type NotFilter struct {
	Filter Filter
}

// EqualityFilter matches attribute values equal to Value.
type EqualityFilter struct {
	Attribute string
	Value     []byte
}

// SubstringsFilter matches values against an initial/any/final pattern. At
// most one Initial (first) and one Final (last); both may be absent.
type SubstringsFilter struct {
	Attribute string
	Initial   []byte
	Any       [][]byte
	Final     []byte
}

// GreaterOrEqualFilter matches values ordered at or above Value.
type GreaterOrEqualFilter struct {
	Attribute string
	Value     []byte
}

// LessOrEqualFilter matches values ordered at or below Value.
type LessOrEqualFilter struct {
	Attribute string
	Value     []byte
}

// PresentFilter matches entries that carry the attribute at all.
type PresentFilter struct {
	Attribute string
}

// ApproxMatchFilter applies the server's approximate-match rule.
type ApproxMatchFilter struct {
	Attribute string
	Value     []byte
}

// ExtensibleMatchFilter is a MatchingRuleAssertion: an optional explicit
// matching rule, an optional attribute, and a value. DNAttributes extends
// matching into the entry's DN components; it defaults to false.
type ExtensibleMatchFilter struct {
	MatchingRule string
	Attribute    string
	Value        []byte
	DNAttributes bool
}

// ============================================================================
// Encoding
// ============================================================================

func encodeFilterSet(tag uint32, filters []Filter) ber.Element {
	children := make([]ber.Element, len(filters))
	for i, f := range filters {
		children[i] = f.encode()
	}
	return ber.Constructed(ber.ContextConstructed(tag), children...)
}

// ava encodes an AttributeValueAssertion under the given CHOICE tag.
func ava(tag uint32, attr string, value []byte) ber.Element {
	return ber.Constructed(ber.ContextConstructed(tag),
		ber.NewString(attr),
		ber.NewOctetString(value),
	)
}

func (f *AndFilter) encode() ber.Element { return encodeFilterSet(filterAnd, f.Filters) }
func (f *OrFilter) encode() ber.Element  { return encodeFilterSet(filterOr, f.Filters) }

func (f *NotFilter) encode() ber.Element {
	return ber.Constructed(ber.ContextConstructed(filterNot), f.Filter.encode())
}

func (f *EqualityFilter) encode() ber.Element {
	return ava(filterEqualityMatch, f.Attribute, f.Value)
}

func (f *SubstringsFilter) encode() ber.Element {
	var subs []ber.Element
	if f.Initial != nil {
		subs = append(subs, ber.Primitive(ber.ContextPrimitive(0), f.Initial))
	}
	for _, any := range f.Any {
		subs = append(subs, ber.Primitive(ber.ContextPrimitive(1), any))
	}
	if f.Final != nil {
		subs = append(subs, ber.Primitive(ber.ContextPrimitive(2), f.Final))
	}
	return ber.Constructed(ber.ContextConstructed(filterSubstrings),
		ber.NewString(f.Attribute),
		ber.NewSequence(subs...),
	)
}

func (f *GreaterOrEqualFilter) encode() ber.Element {
	return ava(filterGreaterOrEqual, f.Attribute, f.Value)
}

func (f *LessOrEqualFilter) encode() ber.Element {
	return ava(filterLessOrEqual, f.Attribute, f.Value)
}

func (f *PresentFilter) encode() ber.Element {
	return ber.Primitive(ber.ContextPrimitive(filterPresent), []byte(f.Attribute))
}

func (f *ApproxMatchFilter) encode() ber.Element {
	return ava(filterApproxMatch, f.Attribute, f.Value)
}

func (f *ExtensibleMatchFilter) encode() ber.Element {
	var children []ber.Element
	if f.MatchingRule != "" {
		children = append(children, ber.Primitive(ber.ContextPrimitive(1), []byte(f.MatchingRule)))
	}
	if f.Attribute != "" {
		children = append(children, ber.Primitive(ber.ContextPrimitive(2), []byte(f.Attribute)))
	}
	children = append(children, ber.Primitive(ber.ContextPrimitive(3), f.Value))
	// dnAttributes BOOLEAN DEFAULT FALSE: encoded only when true.
	if f.DNAttributes {
		children = append(children, ber.Primitive(ber.ContextPrimitive(4), []byte{0xFF}))
	}
	return ber.Constructed(ber.ContextConstructed(filterExtensibleMatch), children...)
}

// ============================================================================
// Decoding
// ============================================================================

// decodeFilter rebuilds a Filter tree from its BER element. Used for
// round-trip verification and by tooling that inspects captured requests.
func decodeFilter(elem ber.Element) (Filter, error) {
	if elem.Tag.Class != ber.ClassContext {
		return nil, protocolErr("filter", "filter element has class %s", elem.Tag.Class)
	}

	switch elem.Tag.Number {
	case filterAnd, filterOr:
		filters := make([]Filter, 0, len(elem.Children))
		for _, child := range elem.Children {
			sub, err := decodeFilter(child)
			if err != nil {
				return nil, err
			}
			filters = append(filters, sub)
		}
		if elem.Tag.Number == filterAnd {
			return &AndFilter{Filters: filters}, nil
		}
		return &OrFilter{Filters: filters}, nil

	case filterNot:
		if len(elem.Children) != 1 {
			return nil, protocolErr("filter", "not filter has %d children", len(elem.Children))
		}
		sub, err := decodeFilter(elem.Children[0])
		if err != nil {
			return nil, err
		}
		return &NotFilter{Filter: sub}, nil

	case filterEqualityMatch, filterGreaterOrEqual, filterLessOrEqual, filterApproxMatch:
		if len(elem.Children) != 2 {
			return nil, protocolErr("filter", "ava has %d children", len(elem.Children))
		}
		attr := elem.Children[0].Str()
		value := elem.Children[1].Bytes()
		switch elem.Tag.Number {
		case filterEqualityMatch:
			return &EqualityFilter{Attribute: attr, Value: value}, nil
		case filterGreaterOrEqual:
			return &GreaterOrEqualFilter{Attribute: attr, Value: value}, nil
		case filterLessOrEqual:
			return &LessOrEqualFilter{Attribute: attr, Value: value}, nil
		default:
			return &ApproxMatchFilter{Attribute: attr, Value: value}, nil
		}

	case filterSubstrings:
		if len(elem.Children) != 2 {
			return nil, protocolErr("filter", "substrings filter has %d children", len(elem.Children))
		}
		f := &SubstringsFilter{Attribute: elem.Children[0].Str()}
		for i, sub := range elem.Children[1].Children {
			switch sub.Tag.Number {
			case 0:
				if f.Initial != nil || i != 0 {
					return nil, protocolErr("filter", "initial substring out of place")
				}
				f.Initial = sub.Bytes()
			case 1:
				f.Any = append(f.Any, sub.Bytes())
			case 2:
				if f.Final != nil || i != len(elem.Children[1].Children)-1 {
					return nil, protocolErr("filter", "final substring out of place")
				}
				f.Final = sub.Bytes()
			default:
				return nil, protocolErr("filter", "unknown substring choice %d", sub.Tag.Number)
			}
		}
		return f, nil

	case filterPresent:
		return &PresentFilter{Attribute: elem.Str()}, nil

	case filterExtensibleMatch:
		f := &ExtensibleMatchFilter{}
		seenValue := false
		for _, child := range elem.Children {
			switch child.Tag.Number {
			case 1:
				f.MatchingRule = child.Str()
			case 2:
				f.Attribute = child.Str()
			case 3:
				f.Value = child.Bytes()
				seenValue = true
			case 4:
				dna, err := child.Bool()
				if err != nil {
					return nil, codecErr("filter", err)
				}
				f.DNAttributes = dna
			default:
				return nil, protocolErr("filter", "unknown matching rule assertion field %d", child.Tag.Number)
			}
		}
		if !seenValue {
			return nil, protocolErr("filter", "matching rule assertion without matchValue")
		}
		return f, nil

	default:
		return nil, protocolErr("filter", "unknown filter choice %d", elem.Tag.Number)
	}
}

// ============================================================================
// String rendering
// ============================================================================

func renderSet(op string, filters []Filter) string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(op)
	for _, f := range filters {
		b.WriteString(f.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (f *AndFilter) String() string { return renderSet("&", f.Filters) }
func (f *OrFilter) String() string  { return renderSet("|", f.Filters) }
func (f *NotFilter) String() string { return "(!" + f.Filter.String() + ")" }

func (f *EqualityFilter) String() string {
	return "(" + f.Attribute + "=" + EscapeFilter(string(f.Value)) + ")"
}

func (f *SubstringsFilter) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(f.Attribute)
	b.WriteByte('=')
	b.WriteString(EscapeFilter(string(f.Initial)))
	b.WriteByte('*')
	for _, any := range f.Any {
		b.WriteString(EscapeFilter(string(any)))
		b.WriteByte('*')
	}
	b.WriteString(EscapeFilter(string(f.Final)))
	b.WriteByte(')')
	return b.String()
}

func (f *GreaterOrEqualFilter) String() string {
	return "(" + f.Attribute + ">=" + EscapeFilter(string(f.Value)) + ")"
}

func (f *LessOrEqualFilter) String() string {
	return "(" + f.Attribute + "<=" + EscapeFilter(string(f.Value)) + ")"
}

func (f *PresentFilter) String() string {
	return "(" + f.Attribute + "=*)"
}

func (f *ApproxMatchFilter) String() string {
	return "(" + f.Attribute + "~=" + EscapeFilter(string(f.Value)) + ")"
}

func (f *ExtensibleMatchFilter) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(f.Attribute)
	if f.DNAttributes {
		b.WriteString(":dn")
	}
	if f.MatchingRule != "" {
		b.WriteByte(':')
		b.WriteString(f.MatchingRule)
	}
	b.WriteString(":=")
	b.WriteString(EscapeFilter(string(f.Value)))
	b.WriteByte(')')
	return b.String()
}

// ============================================================================
// RFC 4515 Compiler
// ============================================================================

// CompileFilter parses an RFC 4515 filter string into a Filter tree.
func CompileFilter(s string) (Filter, error) {
	p := &filterParser{input: s}
	f, err := p.parseFilter()
	if err != nil {
		return nil, &Error{Kind: KindFilterParse, Err: err}
	}
	if p.pos != len(s) {
		return nil, &Error{Kind: KindFilterParse, Err: fmt.Errorf("trailing data at offset %d", p.pos)}
	}
	return f, nil
}

type filterParser struct {
	input string
	pos   int
}

func (p *filterParser) parseFilter() (Filter, error) {
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return nil, fmt.Errorf("expected '(' at offset %d", p.pos)
	}
	p.pos++

	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unterminated filter")
	}

	var f Filter
	var err error
	switch p.input[p.pos] {
	case '&':
		p.pos++
		var filters []Filter
		if filters, err = p.parseFilterList(); err != nil {
			return nil, err
		}
		f = &AndFilter{Filters: filters}
	case '|':
		p.pos++
		var filters []Filter
		if filters, err = p.parseFilterList(); err != nil {
			return nil, err
		}
		f = &OrFilter{Filters: filters}
	case '!':
		p.pos++
		var sub Filter
		if sub, err = p.parseFilter(); err != nil {
			return nil, err
		}
		f = &NotFilter{Filter: sub}
	default:
		if f, err = p.parseItem(); err != nil {
			return nil, err
		}
	}

	if p.pos >= len(p.input) || p.input[p.pos] != ')' {
		return nil, fmt.Errorf("expected ')' at offset %d", p.pos)
	}
	p.pos++
	return f, nil
}

func (p *filterParser) parseFilterList() ([]Filter, error) {
	var filters []Filter
	for p.pos < len(p.input) && p.input[p.pos] == '(' {
		f, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("empty filter set at offset %d", p.pos)
	}
	return filters, nil
}

// parseItem handles simple, substring, present and extensible items. The
// item runs to the next ')': RFC 4515 requires ')' inside values to be
// escaped as \29, so a raw ')' always terminates the item.
func (p *filterParser) parseItem() (Filter, error) {
	end := strings.IndexByte(p.input[p.pos:], ')')
	if end < 0 {
		return nil, fmt.Errorf("unterminated filter item at offset %d", p.pos)
	}
	item := p.input[p.pos : p.pos+end]
	p.pos += end

	eq := strings.IndexByte(item, '=')
	if eq <= 0 {
		return nil, fmt.Errorf("filter item %q has no attribute or no '='", item)
	}

	lhs, rhs := item[:eq], item[eq+1:]
	switch lhs[len(lhs)-1] {
	case '>':
		value, err := unescapeFilterValue(rhs)
		if err != nil {
			return nil, err
		}
		return &GreaterOrEqualFilter{Attribute: lhs[:len(lhs)-1], Value: value}, nil
	case '<':
		value, err := unescapeFilterValue(rhs)
		if err != nil {
			return nil, err
		}
		return &LessOrEqualFilter{Attribute: lhs[:len(lhs)-1], Value: value}, nil
	case '~':
		value, err := unescapeFilterValue(rhs)
		if err != nil {
			return nil, err
		}
		return &ApproxMatchFilter{Attribute: lhs[:len(lhs)-1], Value: value}, nil
	case ':':
		return parseExtensibleItem(lhs[:len(lhs)-1], rhs)
	}

	// Plain equality; '*' in the value selects present or substrings.
	if rhs == "*" {
		return &PresentFilter{Attribute: lhs}, nil
	}
	if strings.ContainsRune(rhs, '*') {
		return parseSubstringsItem(lhs, rhs)
	}
	value, err := unescapeFilterValue(rhs)
	if err != nil {
		return nil, err
	}
	return &EqualityFilter{Attribute: lhs, Value: value}, nil
}

// parseSubstringsItem splits the raw value on '*'. Escaped asterisks (\2a)
// are still in escaped form here, so every raw '*' is a separator.
func parseSubstringsItem(attr, raw string) (Filter, error) {
	parts := strings.Split(raw, "*")
	f := &SubstringsFilter{Attribute: attr}
	for i, part := range parts {
		if part == "" {
			continue
		}
		value, err := unescapeFilterValue(part)
		if err != nil {
			return nil, err
		}
		switch i {
		case 0:
			f.Initial = value
		case len(parts) - 1:
			f.Final = value
		default:
			f.Any = append(f.Any, value)
		}
	}
	return f, nil
}

// parseExtensibleItem parses "attr[:dn][:rule]:=value" with the trailing
// ':' of the lhs already stripped.
func parseExtensibleItem(lhs, rhs string) (Filter, error) {
	value, err := unescapeFilterValue(rhs)
	if err != nil {
		return nil, err
	}
	f := &ExtensibleMatchFilter{Value: value}

	parts := strings.Split(lhs, ":")
	f.Attribute = parts[0]
	for _, part := range parts[1:] {
		switch {
		case part == "dn":
			f.DNAttributes = true
		case f.MatchingRule == "":
			f.MatchingRule = part
		default:
			return nil, fmt.Errorf("extensible match %q has multiple matching rules", lhs)
		}
	}
	if f.Attribute == "" && f.MatchingRule == "" {
		return nil, fmt.Errorf("extensible match needs an attribute or a matching rule")
	}
	return f, nil
}

// unescapeFilterValue resolves RFC 4515 hex escapes (\2a etc.) into raw
// bytes.
func unescapeFilterValue(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		if i+2 >= len(s) {
			return nil, fmt.Errorf("truncated escape in filter value %q", s)
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid escape %q in filter value", s[i:i+3])
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
