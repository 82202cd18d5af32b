package ber

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{
			name: "der is unchanged",
			in:   []byte{0x30, 0x06, 0x02, 0x01, 0x05, 0x04, 0x01, 0xaa},
			want: []byte{0x30, 0x06, 0x02, 0x01, 0x05, 0x04, 0x01, 0xaa},
		},
		{
			name: "indefinite sequence",
			in:   []byte{0x30, 0x80, 0x02, 0x01, 0x05, 0x00, 0x00},
			want: []byte{0x30, 0x03, 0x02, 0x01, 0x05},
		},
		{
			name: "constructed octet string",
			in:   []byte{0x24, 0x80, 0x04, 0x02, 0x01, 0x02, 0x04, 0x01, 0x03, 0x00, 0x00},
			want: []byte{0x04, 0x03, 0x01, 0x02, 0x03},
		},
		{
			name: "constructed bit string",
			in:   []byte{0x23, 0x80, 0x03, 0x02, 0x00, 0xaa, 0x03, 0x02, 0x04, 0xb0, 0x00, 0x00},
			want: []byte{0x03, 0x03, 0x04, 0xaa, 0xb0},
		},
		{
			name: "non-minimal length",
			in:   []byte{0x04, 0x81, 0x02, 0xaa, 0xbb},
			want: []byte{0x04, 0x02, 0xaa, 0xbb},
		},
		{
			name: "boolean true",
			in:   []byte{0x01, 0x01, 0x01},
			want: []byte{0x01, 0x01, 0xff},
		},
		{
			name: "high tag number",
			in:   []byte{0x9f, 0x1f, 0x01, 0x00},
			want: []byte{0x9f, 0x1f, 0x01, 0x00},
		},
		{
			name: "nested indefinite explicit tag",
			in:   []byte{0xa0, 0x80, 0x30, 0x80, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00},
			want: []byte{0xa0, 0x04, 0x30, 0x02, 0x05, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLongContent(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 300)
	in := append([]byte{0x24, 0x80, 0x04, 0x82, 0x01, 0x2c}, payload...)
	in = append(in, 0x00, 0x00)

	got, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x82, 0x01, 0x2c}, got[:4])
	assert.Equal(t, payload, got[4:])
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		err  error
	}{
		{"empty", nil, ErrTruncated},
		{"truncated content", []byte{0x30, 0x05, 0x02, 0x01}, ErrTruncated},
		{"missing end of contents", []byte{0x30, 0x80, 0x02, 0x01, 0x05}, ErrTruncated},
		{"indefinite primitive", []byte{0x04, 0x80, 0x00, 0x00}, ErrInvalidLength},
		{"trailing data", []byte{0x30, 0x00, 0x00}, ErrTrailingData},
		{"stray end of contents", []byte{0x30, 0x02, 0x00, 0x00}, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseTooDeep(t *testing.T) {
	const levels = maxDepth + 5
	in := bytes.Repeat([]byte{0x30, 0x80}, levels)
	in = append(in, bytes.Repeat([]byte{0x00, 0x00}, levels)...)

	_, _, err := Parse(in)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestParseKeepsRawBytes(t *testing.T) {
	in := []byte{0x30, 0x80, 0x30, 0x80, 0x02, 0x01, 0x07, 0x00, 0x00, 0x04, 0x81, 0x01, 0xaa, 0x00, 0x00}

	el, rest, err := Parse(in)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.True(t, el.IsSequence())
	assert.True(t, el.Indefinite)
	assert.Equal(t, in, el.Raw)

	require.Len(t, el.Children, 2)
	assert.Equal(t, []byte{0x30, 0x80, 0x02, 0x01, 0x07, 0x00, 0x00}, el.Children[0].Raw)
	assert.Equal(t, []byte{0x04, 0x81, 0x01, 0xaa}, el.Children[1].Raw)
	assert.Equal(t, []byte{0xaa}, el.Children[1].Content)

	assert.Equal(t, []byte{0x30, 0x08, 0x30, 0x03, 0x02, 0x01, 0x07, 0x04, 0x01, 0xaa}, el.DER())
}
