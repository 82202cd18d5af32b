// Package ber reads BER encoded ASN.1 elements and converts them into their
// DER form.
//
// golang.org/x/crypto/cryptobyte and encoding/asn1 only accept DER. Keychain
// exports and some certificate tooling still emit BER (indefinite lengths,
// constructed strings, non-minimal lengths), so those inputs are read with
// this package first. Every Element keeps the exact bytes it was read from,
// which allows callers to recover the original encoding of a substructure
// after normalization.
package ber

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed     = errors.New("ber: malformed encoding")
	ErrTruncated     = fmt.Errorf("%w: truncated element", ErrMalformed)
	ErrInvalidLength = fmt.Errorf("%w: invalid length", ErrMalformed)
	ErrInvalidTag    = fmt.Errorf("%w: invalid tag", ErrMalformed)
	ErrTooDeep       = fmt.Errorf("%w: nesting too deep", ErrMalformed)
	ErrTrailingData  = fmt.Errorf("%w: trailing data", ErrMalformed)
)

// maxDepth bounds recursion on hostile input.
const maxDepth = 64

type Class uint8

const (
	ClassUniversal       Class = 0
	ClassApplication     Class = 1
	ClassContextSpecific Class = 2
	ClassPrivate         Class = 3
)

// Universal tag numbers this package needs to know about.
const (
	TagEndOfContents   = 0
	TagBoolean         = 1
	TagBitString       = 3
	TagOctetString     = 4
	TagUTF8String      = 12
	TagSequence        = 16
	TagSet             = 17
	TagNumericString   = 18
	TagPrintableString = 19
	TagT61String       = 20
	TagVideotexString  = 21
	TagIA5String       = 22
	TagUTCTime         = 23
	TagGeneralizedTime = 24
	TagGraphicString   = 25
	TagVisibleString   = 26
	TagGeneralString   = 27
	TagUniversalString = 28
	TagBMPString       = 30
)

// Element is a single decoded TLV.
type Element struct {
	Class       Class
	Tag         uint32
	Constructed bool
	// Indefinite is set when the element used the 0x80 length form.
	Indefinite bool
	// Raw holds the complete original encoding including the header and,
	// for indefinite lengths, the end-of-contents octets.
	Raw []byte
	// Content holds the value of primitive elements.
	Content  []byte
	Children []*Element
}

// Parse reads one element from data and returns the unread remainder.
func Parse(data []byte) (*Element, []byte, error) {
	return parse(data, 0)
}

// Normalize reads exactly one element from data and returns its DER encoding.
func Normalize(data []byte) ([]byte, error) {
	el, rest, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: %d bytes after element", ErrTrailingData, len(rest))
	}
	return el.DER(), nil
}

// IsIndefinite reports whether data starts with a constructed element using
// the indefinite length form.
func IsIndefinite(data []byte) bool {
	if len(data) < 2 || data[0]&0x20 == 0 {
		return false
	}
	i := 1
	if data[0]&0x1f == 0x1f {
		for i < len(data) && data[i]&0x80 != 0 {
			i++
		}
		i++
	}
	return i < len(data) && data[i] == 0x80
}

// IsSequence reports whether the element is a universal constructed SEQUENCE.
func (e *Element) IsSequence() bool {
	return e.Class == ClassUniversal && e.Tag == TagSequence && e.Constructed
}

func parse(data []byte, depth int) (*Element, []byte, error) {
	if depth > maxDepth {
		return nil, nil, ErrTooDeep
	}
	if len(data) < 2 {
		return nil, nil, ErrTruncated
	}

	off := 0
	b := data[off]
	off++

	el := &Element{
		Class:       Class(b >> 6),
		Constructed: b&0x20 != 0,
		Tag:         uint32(b & 0x1f),
	}

	if el.Tag == 0x1f {
		el.Tag = 0
		for {
			if off >= len(data) {
				return nil, nil, ErrTruncated
			}
			c := data[off]
			off++
			if el.Tag > 1<<24 {
				return nil, nil, fmt.Errorf("%w: tag number overflow", ErrInvalidTag)
			}
			el.Tag = el.Tag<<7 | uint32(c&0x7f)
			if c&0x80 == 0 {
				break
			}
		}
	}

	if el.Class == ClassUniversal && el.Tag == TagEndOfContents {
		return nil, nil, fmt.Errorf("%w: unexpected end-of-contents", ErrMalformed)
	}

	if off >= len(data) {
		return nil, nil, ErrTruncated
	}
	l := data[off]
	off++

	if l == 0x80 {
		if !el.Constructed {
			return nil, nil, fmt.Errorf("%w: indefinite length on primitive element", ErrInvalidLength)
		}
		el.Indefinite = true
		rest := data[off:]
		for {
			if len(rest) < 2 {
				return nil, nil, ErrTruncated
			}
			if rest[0] == 0 && rest[1] == 0 {
				rest = rest[2:]
				break
			}
			child, r, err := parse(rest, depth+1)
			if err != nil {
				return nil, nil, err
			}
			el.Children = append(el.Children, child)
			rest = r
		}
		consumed := len(data) - len(rest)
		el.Raw = data[:consumed:consumed]
		return el, rest, nil
	}

	var length uint64
	if l&0x80 == 0 {
		length = uint64(l)
	} else {
		n := int(l & 0x7f)
		if n == 0x7f || n > 8 {
			return nil, nil, fmt.Errorf("%w: %d length octets", ErrInvalidLength, n)
		}
		if off+n > len(data) {
			return nil, nil, ErrTruncated
		}
		for i := 0; i < n; i++ {
			length = length<<8 | uint64(data[off+i])
		}
		off += n
	}

	if length > uint64(len(data)-off) {
		return nil, nil, ErrTruncated
	}
	end := off + int(length)
	body := data[off:end]
	el.Raw = data[:end:end]

	if el.Constructed {
		for len(body) > 0 {
			child, r, err := parse(body, depth+1)
			if err != nil {
				return nil, nil, err
			}
			el.Children = append(el.Children, child)
			body = r
		}
	} else {
		el.Content = body
	}

	return el, data[end:], nil
}
