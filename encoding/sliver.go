package encoding

import (
	"bytes"

	"github.com/journeymidnight/sliver/bcs"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

// Sliver is one row (primary) or column (secondary) of the extended symbol
// matrix. Index is the sliver pair index, not the shard index.
type Sliver struct {
	Axis       Axis
	Index      uint16
	SymbolSize uint16
	Data       []byte
}

// SliverPair is what a single shard holds for a blob.
type SliverPair struct {
	Primary   Sliver
	Secondary Sliver
}

func (s *Sliver) NumSymbols() int {
	if s.SymbolSize == 0 {
		return 0
	}
	return len(s.Data) / int(s.SymbolSize)
}

// Symbol returns the i-th symbol without copying.
func (s *Sliver) Symbol(i int) []byte {
	size := int(s.SymbolSize)
	return s.Data[i*size : (i+1)*size]
}

func (s *Sliver) Equal(o *Sliver) bool {
	return s.Axis == o.Axis && s.Index == o.Index && s.SymbolSize == o.SymbolSize && bytes.Equal(s.Data, o.Data)
}

func (s *Sliver) validate() error {
	if s.SymbolSize == 0 {
		return errors.Wrapf(wire_errors.MalformedEncoding, "%s sliver %d has zero symbol size", s.Axis, s.Index)
	}
	if len(s.Data)%int(s.SymbolSize) != 0 {
		return errors.Wrapf(wire_errors.MalformedEncoding, "%s sliver %d: %d bytes is not a multiple of symbol size %d",
			s.Axis, s.Index, len(s.Data), s.SymbolSize)
	}
	return nil
}

// marshalData writes the untagged layout {symbols: {data, symbol_size}, index}.
func (s *Sliver) marshalData(e *bcs.Encoder) {
	e.ByteVector(s.Data)
	e.U16(s.SymbolSize)
	e.U16(s.Index)
}

func (s *Sliver) unmarshalData(d *bcs.Decoder) (err error) {
	if s.Data, err = d.ByteVector(); err != nil {
		return err
	}
	if s.SymbolSize, err = d.U16(); err != nil {
		return err
	}
	if s.Index, err = d.U16(); err != nil {
		return err
	}
	return s.validate()
}

// MarshalBCS writes the axis tag followed by the sliver data.
func (s *Sliver) MarshalBCS(e *bcs.Encoder) {
	e.Variant(uint32(s.Axis))
	s.marshalData(e)
}

func (s *Sliver) UnmarshalBCS(d *bcs.Decoder) error {
	tag, err := d.Variant(uint32(numAxes))
	if err != nil {
		return errors.WithMessage(err, "sliver axis")
	}
	s.Axis = Axis(tag)
	return s.unmarshalData(d)
}

func (s *Sliver) encodedSize() int {
	return 1 + bcs.UlebSize(uint64(len(s.Data))) + len(s.Data) + 4
}

// CanonicalBytes returns the axis-tagged canonical encoding.
func (s *Sliver) CanonicalBytes() []byte {
	e := bcs.NewEncoder(s.encodedSize())
	s.MarshalBCS(e)
	return e.Bytes()
}

// DataBytes returns the untagged encoding. Which axis it belongs to is
// implied by where it appears.
func (s *Sliver) DataBytes() []byte {
	e := bcs.NewEncoder(s.encodedSize() - 1)
	s.marshalData(e)
	return e.Bytes()
}

// UnmarshalSliver parses the axis-tagged encoding produced by CanonicalBytes.
func UnmarshalSliver(data []byte) (Sliver, error) {
	var s Sliver
	if err := bcs.Unmarshal(data, &s); err != nil {
		return Sliver{}, err
	}
	return s, nil
}

// UnmarshalSliverData parses the untagged encoding for a known axis.
func UnmarshalSliverData(axis Axis, data []byte) (Sliver, error) {
	if axis >= numAxes {
		return Sliver{}, errors.Wrapf(wire_errors.MalformedEncoding, "invalid axis %d", axis)
	}
	s := Sliver{Axis: axis}
	d := bcs.NewDecoder(data)
	if err := s.unmarshalData(d); err != nil {
		return Sliver{}, err
	}
	if err := d.Finish(); err != nil {
		return Sliver{}, err
	}
	return s, nil
}

func (p *SliverPair) Index() uint16 {
	return p.Primary.Index
}

// MarshalBCS writes the primary then the secondary sliver, both untagged.
func (p *SliverPair) MarshalBCS(e *bcs.Encoder) {
	p.Primary.marshalData(e)
	p.Secondary.marshalData(e)
}

func (p *SliverPair) UnmarshalBCS(d *bcs.Decoder) error {
	p.Primary.Axis = Primary
	if err := p.Primary.unmarshalData(d); err != nil {
		return errors.WithMessage(err, "primary sliver")
	}
	p.Secondary.Axis = Secondary
	if err := p.Secondary.unmarshalData(d); err != nil {
		return errors.WithMessage(err, "secondary sliver")
	}
	if p.Primary.Index != p.Secondary.Index {
		return errors.Wrapf(wire_errors.MalformedEncoding, "pair index mismatch: primary %d, secondary %d",
			p.Primary.Index, p.Secondary.Index)
	}
	return nil
}

func (p *SliverPair) CanonicalBytes() []byte {
	e := bcs.NewEncoder(p.Primary.encodedSize() + p.Secondary.encodedSize() - 2)
	p.MarshalBCS(e)
	return e.Bytes()
}

func UnmarshalSliverPair(data []byte) (SliverPair, error) {
	var p SliverPair
	if err := bcs.Unmarshal(data, &p); err != nil {
		return SliverPair{}, err
	}
	return p, nil
}
