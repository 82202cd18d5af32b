package x509cert

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// StringKind is the ASN.1 string type of a Name attribute value.
type StringKind int

const (
	UTF8String StringKind = iota
	PrintableString
	IA5String
	BMPString
	TeletexString
	NumericString
	VisibleString
	UniversalString
	// OpaqueValue holds an attribute value of any other ASN.1 type. Value
	// is the complete DER element and is written back unchanged.
	OpaqueValue
)

var stringKindTags = map[StringKind]cryptobyte_asn1.Tag{
	UTF8String:      cryptobyte_asn1.UTF8String,
	PrintableString: cryptobyte_asn1.PrintableString,
	IA5String:       cryptobyte_asn1.IA5String,
	BMPString:       cryptobyte_asn1.Tag(30),
	TeletexString:   cryptobyte_asn1.T61String,
	NumericString:   cryptobyte_asn1.Tag(18),
	VisibleString:   cryptobyte_asn1.Tag(26),
	UniversalString: cryptobyte_asn1.Tag(28),
}

func (k StringKind) String() string {
	switch k {
	case UTF8String:
		return "UTF8String"
	case PrintableString:
		return "PrintableString"
	case IA5String:
		return "IA5String"
	case BMPString:
		return "BMPString"
	case TeletexString:
		return "TeletexString"
	case NumericString:
		return "NumericString"
	case VisibleString:
		return "VisibleString"
	case UniversalString:
		return "UniversalString"
	case OpaqueValue:
		return "Opaque"
	}
	return fmt.Sprintf("StringKind(%d)", int(k))
}

func (k StringKind) tag() (cryptobyte_asn1.Tag, bool) {
	t, ok := stringKindTags[k]
	return t, ok
}

func stringKindForTag(tag cryptobyte_asn1.Tag) (StringKind, bool) {
	for k, t := range stringKindTags {
		if t == tag {
			return k, true
		}
	}
	return 0, false
}

// AttributeValue is a typed string value of a Name attribute.
//
// TeletexString values hold the raw octets as found in the encoding.
type AttributeValue struct {
	Kind  StringKind
	Value string
}

// NewAttributeValue validates that value can be represented as kind.
func NewAttributeValue(kind StringKind, value string) (AttributeValue, error) {
	if err := checkCharset(kind, value, false); err != nil {
		return AttributeValue{}, err
	}
	return AttributeValue{Kind: kind, Value: value}, nil
}

func (v AttributeValue) String() string {
	return v.Value
}

func checkCharset(kind StringKind, value string, lenient bool) error {
	switch kind {
	case UTF8String:
		if !utf8.ValidString(value) {
			return fmt.Errorf("%w: invalid UTF-8 in %s", ErrCharset, kind)
		}
		return nil
	case TeletexString:
		return nil
	case OpaqueValue:
		s := cryptobyte.String(value)
		var elem cryptobyte.String
		var tag cryptobyte_asn1.Tag
		if !s.ReadAnyASN1Element(&elem, &tag) || !s.Empty() {
			return fmt.Errorf("%w: opaque value is not a single ASN.1 element", ErrCharset)
		}
		return nil
	case BMPString, UniversalString:
		if !utf8.ValidString(value) {
			return fmt.Errorf("%w: invalid UTF-8 in %s", ErrCharset, kind)
		}
		if kind == BMPString {
			for _, r := range value {
				if r > 0xffff {
					return fmt.Errorf("%w: %U outside the basic multilingual plane", ErrCharset, r)
				}
			}
		}
		return nil
	}

	for i := 0; i < len(value); i++ {
		c := value[i]
		var ok bool
		switch kind {
		case PrintableString:
			ok = isPrintable(c) || (lenient && (c == '*' || c == '&'))
		case IA5String:
			ok = c < utf8.RuneSelf
		case NumericString:
			ok = c == ' ' || ('0' <= c && c <= '9')
		case VisibleString:
			ok = c >= 0x20 && c <= 0x7e
		default:
			return fmt.Errorf("%w: unknown string kind %v", ErrCharset, kind)
		}
		if !ok {
			return fmt.Errorf("%w: byte 0x%02x not allowed in %s", ErrCharset, c, kind)
		}
	}
	return nil
}

// isPrintable reports whether c is in the PrintableString alphabet
// (X.680 41.4).
func isPrintable(c byte) bool {
	return 'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		'0' <= c && c <= '9' ||
		'\'' <= c && c <= ')' ||
		'+' <= c && c <= '/' ||
		c == ' ' || c == ':' || c == '=' || c == '?'
}

// encodeContents returns the content octets of the value in its ASN.1
// string type.
func (v AttributeValue) encodeContents() ([]byte, error) {
	if err := checkCharset(v.Kind, v.Value, true); err != nil {
		return nil, err
	}
	switch v.Kind {
	case BMPString:
		units := utf16.Encode([]rune(v.Value))
		out := make([]byte, 2*len(units))
		for i, u := range units {
			binary.BigEndian.PutUint16(out[2*i:], u)
		}
		return out, nil
	case UniversalString:
		runes := []rune(v.Value)
		out := make([]byte, 4*len(runes))
		for i, r := range runes {
			binary.BigEndian.PutUint32(out[4*i:], uint32(r))
		}
		return out, nil
	}
	return []byte(v.Value), nil
}

// decodeAttributeValue interprets content octets read under tag. Values
// that are not strings are kept as the whole element.
func decodeAttributeValue(tag cryptobyte_asn1.Tag, contents, element []byte) (AttributeValue, error) {
	kind, ok := stringKindForTag(tag)
	if !ok {
		return AttributeValue{Kind: OpaqueValue, Value: string(element)}, nil
	}

	var s string
	switch kind {
	case BMPString:
		if len(contents)%2 != 0 {
			return AttributeValue{}, fmt.Errorf("odd BMPString length %d", len(contents))
		}
		units := make([]uint16, len(contents)/2)
		for i := range units {
			units[i] = binary.BigEndian.Uint16(contents[2*i:])
		}
		s = string(utf16.Decode(units))
	case UniversalString:
		if len(contents)%4 != 0 {
			return AttributeValue{}, fmt.Errorf("UniversalString length %d not a multiple of 4", len(contents))
		}
		runes := make([]rune, len(contents)/4)
		for i := range runes {
			runes[i] = rune(binary.BigEndian.Uint32(contents[4*i:]))
		}
		s = string(runes)
	default:
		s = string(contents)
	}

	if err := checkCharset(kind, s, true); err != nil {
		return AttributeValue{}, err
	}
	return AttributeValue{Kind: kind, Value: s}, nil
}
