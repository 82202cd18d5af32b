package x509cert

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"slices"
)

// AttributeTypeAndValue is a single attribute of a relative distinguished
// name.
type AttributeTypeAndValue struct {
	Type  asn1.ObjectIdentifier
	Value AttributeValue
}

func (a AttributeTypeAndValue) Equal(o AttributeTypeAndValue) bool {
	return a.Type.Equal(o.Type) && a.Value == o.Value
}

func (a AttributeTypeAndValue) clone() AttributeTypeAndValue {
	return AttributeTypeAndValue{Type: slices.Clone(a.Type), Value: a.Value}
}

// RelativeDistinguishedName is an unordered set of attributes.
type RelativeDistinguishedName []AttributeTypeAndValue

// Equal compares the attributes regardless of order. Repeated attributes
// must occur equally often on both sides.
func (r RelativeDistinguishedName) Equal(o RelativeDistinguishedName) bool {
	if len(r) != len(o) {
		return false
	}
	used := make([]bool, len(o))
	for _, a := range r {
		found := false
		for j, b := range o {
			if !used[j] && a.Equal(b) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// IsSubsetOf reports whether every attribute of r is contained in o.
func (r RelativeDistinguishedName) IsSubsetOf(o RelativeDistinguishedName) bool {
	for _, a := range r {
		if !slices.ContainsFunc(o, a.Equal) {
			return false
		}
	}
	return true
}

// Name is an X.501 Name as an ordered RDN sequence.
type Name []RelativeDistinguishedName

func (n Name) Equal(o Name) bool {
	return slices.EqualFunc(n, o, RelativeDistinguishedName.Equal)
}

// Clone returns a deep copy of the name.
func (n Name) Clone() Name {
	if n == nil {
		return nil
	}
	out := make(Name, len(n))
	for i, rdn := range n {
		set := make(RelativeDistinguishedName, len(rdn))
		for j, atv := range rdn {
			set[j] = atv.clone()
		}
		out[i] = set
	}
	return out
}

// AppendAttribute appends a new single-valued RDN holding value in the given
// string type. The value is rejected with ErrCharset if the string type
// cannot represent it.
func (n *Name) AppendAttribute(oid asn1.ObjectIdentifier, kind StringKind, value string) error {
	v, err := NewAttributeValue(kind, value)
	if err != nil {
		return err
	}
	*n = append(*n, RelativeDistinguishedName{{Type: slices.Clone(oid), Value: v}})
	return nil
}

func (n *Name) AppendUTF8String(oid asn1.ObjectIdentifier, value string) error {
	return n.AppendAttribute(oid, UTF8String, value)
}

func (n *Name) AppendPrintableString(oid asn1.ObjectIdentifier, value string) error {
	return n.AppendAttribute(oid, PrintableString, value)
}

func (n *Name) AppendIA5String(oid asn1.ObjectIdentifier, value string) error {
	return n.AppendAttribute(oid, IA5String, value)
}

func (n *Name) AppendCommonNameUTF8String(value string) error {
	return n.AppendUTF8String(OIDCommonName, value)
}

func (n *Name) AppendCountryUTF8String(value string) error {
	return n.AppendUTF8String(OIDCountryName, value)
}

func (n *Name) AppendOrganizationUTF8String(value string) error {
	return n.AppendUTF8String(OIDOrganizationName, value)
}

func (n *Name) AppendOrganizationalUnitUTF8String(value string) error {
	return n.AppendUTF8String(OIDOrganizationalUnitName, value)
}

// FindAll returns every value stored under oid, in order.
func (n Name) FindAll(oid asn1.ObjectIdentifier) []AttributeValue {
	var out []AttributeValue
	for _, rdn := range n {
		for _, atv := range rdn {
			if atv.Type.Equal(oid) {
				out = append(out, atv.Value)
			}
		}
	}
	return out
}

// FindFirst returns the first value stored under oid.
func (n Name) FindFirst(oid asn1.ObjectIdentifier) (AttributeValue, bool) {
	for _, rdn := range n {
		for _, atv := range rdn {
			if atv.Type.Equal(oid) {
				return atv.Value, true
			}
		}
	}
	return AttributeValue{}, false
}

func (n Name) CommonName() (string, bool) {
	v, ok := n.FindFirst(OIDCommonName)
	return v.Value, ok
}

// ToRDNSequence converts the name for use with crypto/x509/pkix.
func (n Name) ToRDNSequence() pkix.RDNSequence {
	seq := make(pkix.RDNSequence, 0, len(n))
	for _, rdn := range n {
		set := make(pkix.RelativeDistinguishedNameSET, 0, len(rdn))
		for _, atv := range rdn {
			var value any = atv.Value.Value
			if atv.Value.Kind == OpaqueValue {
				value = asn1.RawValue{FullBytes: []byte(atv.Value.Value)}
			}
			set = append(set, pkix.AttributeTypeAndValue{Type: atv.Type, Value: value})
		}
		seq = append(seq, set)
	}
	return seq
}

// UserFriendlyString renders the name in RFC 4514 form.
func (n Name) UserFriendlyString() string {
	return n.ToRDNSequence().String()
}

func (n Name) String() string {
	return n.UserFriendlyString()
}
