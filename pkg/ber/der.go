package ber

// DER returns the canonical definite-length encoding of the element.
//
// Constructed universal string types are flattened into their primitive
// form and BOOLEAN values are canonicalized. Members of SET and SET OF are
// kept in input order.
func (e *Element) DER() []byte {
	return e.appendDER(nil)
}

func (e *Element) appendDER(dst []byte) []byte {
	if e.Constructed && e.Class == ClassUniversal && isStringTag(e.Tag) {
		content := e.flattenString()
		dst = appendIdentifier(dst, e.Class, false, e.Tag)
		dst = appendLength(dst, len(content))
		return append(dst, content...)
	}

	if !e.Constructed {
		content := e.Content
		if e.Class == ClassUniversal && e.Tag == TagBoolean && len(content) == 1 && content[0] != 0 {
			content = []byte{0xff}
		}
		dst = appendIdentifier(dst, e.Class, false, e.Tag)
		dst = appendLength(dst, len(content))
		return append(dst, content...)
	}

	var content []byte
	for _, child := range e.Children {
		content = child.appendDER(content)
	}
	dst = appendIdentifier(dst, e.Class, true, e.Tag)
	dst = appendLength(dst, len(content))
	return append(dst, content...)
}

// flattenString concatenates the segments of a constructed string. BIT
// STRING segments each carry an unused-bits octet; only the last one counts.
func (e *Element) flattenString() []byte {
	var segments [][]byte
	collectSegments(e, &segments)

	if e.Tag != TagBitString {
		var out []byte
		for _, s := range segments {
			out = append(out, s...)
		}
		return out
	}

	unused := byte(0)
	out := []byte{0}
	for i, s := range segments {
		if len(s) == 0 {
			continue
		}
		if i == len(segments)-1 {
			unused = s[0]
		}
		out = append(out, s[1:]...)
	}
	out[0] = unused
	return out
}

func collectSegments(e *Element, segments *[][]byte) {
	if !e.Constructed {
		*segments = append(*segments, e.Content)
		return
	}
	for _, child := range e.Children {
		collectSegments(child, segments)
	}
}

func isStringTag(tag uint32) bool {
	switch tag {
	case TagBitString, TagOctetString, TagUTF8String, TagNumericString,
		TagPrintableString, TagT61String, TagVideotexString, TagIA5String,
		TagUTCTime, TagGeneralizedTime, TagGraphicString, TagVisibleString,
		TagGeneralString, TagUniversalString, TagBMPString:
		return true
	}
	return false
}

func appendIdentifier(dst []byte, class Class, constructed bool, tag uint32) []byte {
	b := byte(class) << 6
	if constructed {
		b |= 0x20
	}
	if tag < 0x1f {
		return append(dst, b|byte(tag))
	}
	dst = append(dst, b|0x1f)

	var tmp [5]byte
	i := len(tmp) - 1
	tmp[i] = byte(tag & 0x7f)
	for tag >>= 7; tag > 0; tag >>= 7 {
		i--
		tmp[i] = byte(tag&0x7f) | 0x80
	}
	return append(dst, tmp[i:]...)
}

func appendLength(dst []byte, n int) []byte {
	if n < 0x80 {
		return append(dst, byte(n))
	}
	var tmp [8]byte
	i := len(tmp)
	for v := n; v > 0; v >>= 8 {
		i--
		tmp[i] = byte(v)
	}
	dst = append(dst, 0x80|byte(len(tmp)-i))
	return append(dst, tmp[i:]...)
}
