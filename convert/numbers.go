package convert

import (
	"math"
)

func TwoDecimals(number float64) float64 {
	return RoundFloat64(number, 2)
}

func ThreeDecimals(number float64) float64 {
	return RoundFloat64(number, 3)
}

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(int(decimals))) / math.Pow10(int(decimals))
}

// PenceToGBP converts a minor-unit amount (pence) into GBP rounded to two
// decimals. Nil stays nil so a missing reading keeps its "unknown" meaning
// all the way to the entity.
func PenceToGBP(pence *float64) *float64 {
	if pence == nil {
		return nil
	}
	gbp := TwoDecimals(*pence / 100.0)
	return &gbp
}

func RoundPtr(number *float64, decimals int) *float64 {
	if number == nil {
		return nil
	}
	r := RoundFloat64(*number, decimals)
	return &r
}
