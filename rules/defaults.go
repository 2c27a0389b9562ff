package rules

import (
	"errors"
	"math"
)

// Physical and policy bounds enforced by the baseline set.
const (
	MinTemperatureC   = -273.15
	MaxTemperatureC   = 5000.0
	MinEntropyBits    = 128.0
	MaxBitErrorRate   = 0.5
	MaxVelocityMS     = 500.0
	earthRadiusMeters = 6371000.0
)

// DefaultSet returns the baseline admissibility rules. Every identity gate
// starts from this set; callers may Add domain rules on top.
func DefaultSet() *Set {
	s := NewSet()

	s.MustAdd(Rule{
		ID:          "SIGMA_001_TIMESTAMP_MONOTONIC",
		Description: "timestamp must not precede the previous state's",
		Severity:    SeverityCritical,
		Check: func(st State) (bool, error) {
			if st.Timestamp == nil || st.PrevTimestamp == nil {
				return true, nil
			}
			return *st.Timestamp >= *st.PrevTimestamp, nil
		},
	})

	s.MustAdd(Rule{
		ID:          "SIGMA_002_PREV_HASH_VALID",
		Description: "prev_hash must be a 64-character hex digest",
		Severity:    SeverityCritical,
		Check: func(st State) (bool, error) {
			if st.PrevHash == nil || *st.PrevHash == "" {
				return true, nil
			}
			return isHexDigest(*st.PrevHash, 64), nil
		},
	})

	s.MustAdd(Rule{
		ID:          "SIGMA_003_TEMPERATURE_PHYSICAL",
		Description: "temperature must lie within physical bounds",
		Severity:    SeverityCritical,
		Check: func(st State) (bool, error) {
			if st.Temperature == nil {
				return true, nil
			}
			t := *st.Temperature
			return t >= MinTemperatureC && t <= MaxTemperatureC, nil
		},
	})

	s.MustAdd(Rule{
		ID:          "SIGMA_004_LOCATION_VALID",
		Description: "location must be within geographic bounds",
		Severity:    SeverityCritical,
		Check: func(st State) (bool, error) {
			if st.Lat == nil || st.Lon == nil {
				return true, nil
			}
			return *st.Lat >= -90 && *st.Lat <= 90 && *st.Lon >= -180 && *st.Lon <= 180, nil
		},
	})

	s.MustAdd(Rule{
		ID:          "SIGMA_005_ENTROPY_MINIMUM",
		Description: "entropy must meet the minimum bit threshold",
		Severity:    SeverityCritical,
		Check: func(st State) (bool, error) {
			if st.EntropyBits == nil {
				return true, nil
			}
			return *st.EntropyBits >= MinEntropyBits, nil
		},
	})

	s.MustAdd(Rule{
		ID:          "SIGMA_006_PUF_ID_EXISTS",
		Description: "source identifier must be present and non-empty",
		Severity:    SeverityCritical,
		Check: func(st State) (bool, error) {
			return st.SourceID != nil && *st.SourceID != "", nil
		},
	})

	s.MustAdd(Rule{
		ID:          "SIGMA_007_BER_ACCEPTABLE",
		Description: "bit error rate must stay within the correctable range",
		Severity:    SeverityError,
		Check: func(st State) (bool, error) {
			if st.BER == nil {
				return true, nil
			}
			if math.IsNaN(*st.BER) {
				return false, errors.New("bit error rate is not a number")
			}
			return *st.BER >= 0 && *st.BER <= MaxBitErrorRate, nil
		},
	})

	s.MustAdd(Rule{
		ID:          "SIGMA_008_VELOCITY_PHYSICAL",
		Description: "implied velocity between consecutive states must be physically plausible",
		Severity:    SeverityCritical,
		Check:       checkVelocity,
	})

	return s
}

// checkVelocity bounds the implied ground speed between consecutive located
// states. Zero or negative elapsed time with movement fails; a distance or
// time computation that degenerates to NaN/Inf passes, since the companion
// monotonicity and bounds rules already cover malformed inputs.
func checkVelocity(st State) (bool, error) {
	if st.Lat == nil || st.Lon == nil || st.PrevLat == nil || st.PrevLon == nil {
		return true, nil
	}
	if st.Timestamp == nil || st.PrevTimestamp == nil {
		return true, nil
	}

	dist := haversineMeters(*st.PrevLat, *st.PrevLon, *st.Lat, *st.Lon)
	elapsed := *st.Timestamp - *st.PrevTimestamp

	if math.IsNaN(dist) || math.IsInf(dist, 0) || math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return true, nil
	}
	if elapsed <= 0 {
		return false, nil
	}
	return dist/elapsed <= MaxVelocityMS, nil
}

// haversineMeters is the great-circle distance between two points in decimal
// degrees.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dphi := (lat2 - lat1) * math.Pi / 180
	dlam := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlam/2)*math.Sin(dlam/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

func isHexDigest(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
