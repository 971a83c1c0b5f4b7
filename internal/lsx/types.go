package lsx

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Kind groups attribute types by how their values are parsed.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindInt
	KindUint
	KindString
	KindBool
	KindGUID
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindGUID:
		return "guid"
	default:
		return "unrecognized"
	}
}

// Type describes an attribute type name. Names missing from the type table
// produce a Type with KindUnrecognized that still carries the raw name.
type Type struct {
	Name string
	Kind Kind
	Bits int
}

// Recognized reports whether the type name was found in the type table.
func (t Type) Recognized() bool {
	return t.Kind != KindUnrecognized
}

var typeTable = map[string]Type{
	"int8":        {Name: "int8", Kind: KindInt, Bits: 8},
	"uint8":       {Name: "uint8", Kind: KindUint, Bits: 8},
	"int16":       {Name: "int16", Kind: KindInt, Bits: 16},
	"uint16":      {Name: "uint16", Kind: KindUint, Bits: 16},
	"int32":       {Name: "int32", Kind: KindInt, Bits: 32},
	"uint32":      {Name: "uint32", Kind: KindUint, Bits: 32},
	"int64":       {Name: "int64", Kind: KindInt, Bits: 64},
	"uint64":      {Name: "uint64", Kind: KindUint, Bits: 64},
	"bool":        {Name: "bool", Kind: KindBool},
	"guid":        {Name: "guid", Kind: KindGUID},
	"LSString":    {Name: "LSString", Kind: KindString},
	"LSWString":   {Name: "LSWString", Kind: KindString},
	"FixedString": {Name: "FixedString", Kind: KindString},
}

// LookupType resolves a type name from an attribute's type field.
func LookupType(name string) Type {
	if t, ok := typeTable[name]; ok {
		return t
	}
	return Type{Name: name, Kind: KindUnrecognized}
}

// ErrInvalidValue is returned when a value does not parse as its declared type.
var ErrInvalidValue = errors.New("invalid attribute value")

// Value is a parsed attribute value. Raw always holds the text as written.
type Value struct {
	Type Type
	Raw  string
	Int  int64
	Uint uint64
	Bool bool
}

// ParseValue parses raw according to the named type. Integers are
// bounds-checked against the type width. Unrecognized types keep the raw text.
func ParseValue(typeName, raw string) (Value, error) {
	t := LookupType(typeName)
	v := Value{Type: t, Raw: raw}

	var err error
	switch t.Kind {
	case KindInt:
		v.Int, err = strconv.ParseInt(raw, 10, t.Bits)
	case KindUint:
		v.Uint, err = strconv.ParseUint(raw, 10, t.Bits)
	case KindBool:
		v.Bool, err = strconv.ParseBool(raw)
	case KindGUID:
		if !isGUID(raw) {
			err = fmt.Errorf("malformed guid")
		}
	}
	if err != nil {
		return Value{}, fmt.Errorf("%w: %s %q: %w", ErrInvalidValue, typeName, raw, err)
	}
	return v, nil
}

// String formats the value back to its textual form.
func (v Value) String() string {
	switch v.Type.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	default:
		return v.Raw
	}
}

// isGUID accepts the 8-4-4-4-12 hex form only; uuid.Parse alone also takes
// braced, urn and undashed spellings.
func isGUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
