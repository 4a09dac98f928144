package metadata

import (
	"fmt"
	"math"
	"math/big"

	"github.com/user/imgbridge/pkg/logsink"
	"github.com/user/imgbridge/pkg/ports"
)

// CICP is a coding-independent colour description. Matrix coefficients are
// always 0 (identity) and the range is always full, since engines decode to
// RGB.
type CICP struct {
	ColorPrimaries          uint8 `json:"color_primaries"`
	TransferCharacteristics uint8 `json:"transfer_characteristics"`
	MatrixCoefficients      uint8 `json:"matrix_coefficients"`
	FullRange               bool  `json:"full_range"`
}

func needsCICP(primaries, transfer int) bool {
	return primaries != ports.CICPUnspecified || transfer != ports.CICPUnspecified
}

// SynthesizeCICP returns a CICP descriptor unless both code points are
// unspecified.
func SynthesizeCICP(primaries, transfer int) *CICP {
	if !needsCICP(primaries, transfer) {
		return nil
	}
	return &CICP{
		ColorPrimaries:          uint8(primaries),
		TransferCharacteristics: uint8(transfer),
		MatrixCoefficients:      0,
		FullRange:               true,
	}
}

// EXIF tags carried by a ChromaticityRecord.
const (
	TagWhitePoint            uint16 = 0x013E
	TagPrimaryChromaticities uint16 = 0x013F
)

// Rational is an unsigned EXIF RATIONAL.
type Rational struct {
	Numerator   uint32 `json:"num"`
	Denominator uint32 `json:"den"`
}

// rationalDenominator bounds the precision of converted coordinates.
const rationalDenominator = 1000000

// NewRational approximates v as a reduced fraction over at most one million.
// Values outside [0, 4294.967295] cannot be stored in an unsigned RATIONAL;
// they are clamped to the nearest bound and a warning is logged.
func NewRational(v float64) Rational {
	if v == 0 {
		return Rational{Numerator: 0, Denominator: 1}
	}
	if v < 0 || math.IsNaN(v) {
		logsink.Logf(logsink.Warning, "metadata: chromaticity %v is not representable, using 0", v)
		return Rational{Numerator: 0, Denominator: 1}
	}
	scaled := math.Round(v * rationalDenominator)
	if scaled > math.MaxUint32 {
		logsink.Logf(logsink.Warning, "metadata: chromaticity %v is not representable, clamping", v)
		scaled = math.MaxUint32
	}
	r := big.NewRat(int64(scaled), rationalDenominator)
	return Rational{
		Numerator:   uint32(r.Num().Int64()),
		Denominator: uint32(r.Denom().Int64()),
	}
}

// Float returns the value of r.
func (r Rational) Float() float64 {
	if r.Denominator == 0 {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Numerator, r.Denominator)
}

// ChromaticityRecord carries primaries and white point as the EXIF tag
// values WhitePoint and PrimaryChromaticities.
type ChromaticityRecord struct {
	WhitePoint            [2]Rational `json:"white_point"`
	PrimaryChromaticities [6]Rational `json:"primary_chromaticities"`
}

// Entry is one tag-value pair of a ChromaticityRecord.
type Entry struct {
	Tag    uint16
	Values []Rational
}

// Entries returns the record as EXIF tag entries in tag order.
func (c *ChromaticityRecord) Entries() []Entry {
	return []Entry{
		{Tag: TagWhitePoint, Values: c.WhitePoint[:]},
		{Tag: TagPrimaryChromaticities, Values: c.PrimaryChromaticities[:]},
	}
}

func needsChromaticity(c [8]float32) bool {
	for _, v := range c {
		if v != 0 {
			return true
		}
	}
	return false
}

// SynthesizeChromaticity returns a record when any coordinate is non-zero.
func SynthesizeChromaticity(c [8]float32) *ChromaticityRecord {
	if !needsChromaticity(c) {
		return nil
	}
	r := func(i int) Rational { return NewRational(float64(c[i])) }
	return &ChromaticityRecord{
		WhitePoint: [2]Rational{r(ports.ChromaWhiteX), r(ports.ChromaWhiteY)},
		PrimaryChromaticities: [6]Rational{
			r(ports.ChromaRedX), r(ports.ChromaRedY),
			r(ports.ChromaGreenX), r(ports.ChromaGreenY),
			r(ports.ChromaBlueX), r(ports.ChromaBlueY),
		},
	}
}
