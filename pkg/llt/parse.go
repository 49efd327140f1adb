package llt

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Parse reads the notation produced by Type.String
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		return parseVector(s)
	}
	return parseElement(s)
}

// MustParse is Parse for literals known to be well formed
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseVector(s string) (Type, error) {
	if !strings.HasSuffix(s, ">") {
		return Type{}, fmt.Errorf("llt: unterminated vector type %q", s)
	}
	fields := strings.Fields(s[1 : len(s)-1])
	if len(fields) != 3 || fields[1] != "x" {
		return Type{}, fmt.Errorf("llt: malformed vector type %q", s)
	}
	lanes, ok := parseField(fields[0], 16)
	if !ok || lanes < 2 {
		return Type{}, fmt.Errorf("llt: bad lane count in %q", s)
	}
	elt, err := parseElement(fields[2])
	if err != nil {
		return Type{}, err
	}
	return VectorOf(lanes, elt), nil
}

func parseElement(s string) (Type, error) {
	if len(s) < 2 {
		return Type{}, fmt.Errorf("llt: malformed type %q", s)
	}
	switch s[0] {
	case 's':
		bits, ok := parseField(s[1:], 32)
		if !ok || bits == 0 {
			return Type{}, fmt.Errorf("llt: bad scalar width in %q", s)
		}
		return Scalar(bits), nil
	case 'p':
		spaceStr, bitsStr, ok := strings.Cut(s[1:], ".")
		if !ok {
			return Type{}, fmt.Errorf("llt: pointer type %q needs a width (p<space>.<bits>)", s)
		}
		space, ok := parseField(spaceStr, 32)
		if !ok {
			return Type{}, fmt.Errorf("llt: bad address space in %q", s)
		}
		bits, ok := parseField(bitsStr, 32)
		if !ok || bits == 0 {
			return Type{}, fmt.Errorf("llt: bad pointer width in %q", s)
		}
		return Pointer(space, bits), nil
	}
	return Type{}, fmt.Errorf("llt: unknown type %q", s)
}

// parseField reads an unsigned decimal that must fit in bitSize bits, the
// storage width of the field in Type
func parseField(s string, bitSize int) (int, bool) {
	n, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, false
	}
	v, err := safecast.Conv[int](n)
	return v, err == nil
}
