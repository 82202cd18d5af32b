package x509cert

import "time"

// TimeKind selects the ASN.1 type used for a validity timestamp.
type TimeKind int

const (
	UTCTime TimeKind = iota
	GeneralizedTime
)

// Time is a validity timestamp together with its ASN.1 representation.
type Time struct {
	Value time.Time
	Kind  TimeKind
}

// NewTime picks UTCTime for dates in 1950 through 2049 and GeneralizedTime
// otherwise (RFC 5280 4.1.2.5). Sub-second precision is dropped.
func NewTime(t time.Time) Time {
	t = t.UTC().Truncate(time.Second)
	if y := t.Year(); y >= 1950 && y < 2050 {
		return Time{Value: t, Kind: UTCTime}
	}
	return Time{Value: t, Kind: GeneralizedTime}
}

func (t Time) Equal(o Time) bool {
	return t.Kind == o.Kind && t.Value.Equal(o.Value)
}

// Validity is the certificate validity period.
type Validity struct {
	NotBefore Time
	NotAfter  Time
}

func (v Validity) Equal(o Validity) bool {
	return v.NotBefore.Equal(o.NotBefore) && v.NotAfter.Equal(o.NotAfter)
}

// Contains reports whether t lies within the validity period, inclusive.
func (v Validity) Contains(t time.Time) bool {
	return !t.Before(v.NotBefore.Value) && !t.After(v.NotAfter.Value)
}
