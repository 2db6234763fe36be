package encoding

import (
	"strings"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

// EncodingType identifies the erasure code variant. The numeric values are
// the canonical enum tags and must never change.
type EncodingType uint8

const (
	RedStuff EncodingType = iota
	RS2

	numEncodingTypes
)

func (t EncodingType) String() string {
	switch t {
	case RedStuff:
		return "RedStuff"
	case RS2:
		return "RS2"
	}
	return "Unknown"
}

func ParseEncodingType(s string) (EncodingType, error) {
	switch strings.ToLower(s) {
	case "redstuff":
		return RedStuff, nil
	case "rs2", "":
		return RS2, nil
	}
	return 0, errors.Wrapf(wire_errors.UnsupportedEncodingType, "%q", s)
}

func (t EncodingType) MarshalBCS(e *bcs.Encoder) {
	e.Variant(uint32(t))
}

func (t *EncodingType) UnmarshalBCS(d *bcs.Decoder) error {
	tag, err := d.Variant(uint32(numEncodingTypes))
	if err != nil {
		return errors.WithMessage(err, "encoding type")
	}
	*t = EncodingType(tag)
	return nil
}

// Axis selects the dimension of the two-dimensional code. Primary slivers
// are rows of the symbol matrix, secondary slivers are columns.
type Axis uint8

const (
	Primary Axis = iota
	Secondary

	numAxes
)

func (a Axis) String() string {
	switch a {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	}
	return "unknown"
}

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(s) {
	case "primary", "":
		return Primary, nil
	case "secondary":
		return Secondary, nil
	}
	return 0, errors.Wrapf(wire_errors.InvalidConfiguration, "unknown axis %q", s)
}

func (a Axis) Orthogonal() Axis {
	if a == Primary {
		return Secondary
	}
	return Primary
}
