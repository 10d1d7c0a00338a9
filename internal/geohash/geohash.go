// Package geohash decodes and encodes the base-32 geohash strings devices use to
// report the centroid of a tracked day. The codec itself is
// github.com/mmcloughlin/geohash; this package adds the input rules the
// upload API applies on top of it.
package geohash

import (
	"errors"
	"fmt"
	"strings"

	mmgeohash "github.com/mmcloughlin/geohash"
)

// MaxPrecision is the longest hash accepted. Twelve characters already resolve
// to a few centimetres.
const MaxPrecision = 12

// ErrEmpty is returned when decoding an empty hash.
var ErrEmpty = errors.New("geohash is empty")

// Decode returns the centre of the cell identified by hash.
// Upper-case input is accepted.
func Decode(hash string) (lat, lon float64, err error) {
	if hash == "" {
		return 0, 0, ErrEmpty
	}
	if len(hash) > MaxPrecision {
		return 0, 0, fmt.Errorf("geohash.Decode: %q is longer than %d characters", hash, MaxPrecision)
	}

	hash = strings.ToLower(hash)
	if err := mmgeohash.Validate(hash); err != nil {
		return 0, 0, fmt.Errorf("geohash.Decode: %w", err)
	}

	lat, lon = mmgeohash.DecodeCenter(hash)
	return lat, lon, nil
}

// Encode returns the geohash of the given point with precision characters.
// precision is clamped to [1, MaxPrecision].
func Encode(lat, lon float64, precision int) string {
	precision = min(max(precision, 1), MaxPrecision)
	return mmgeohash.EncodeWithPrecision(lat, lon, uint(precision))
}
