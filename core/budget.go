package core

// Degree is the academic level a scholarship budget line is reserved for.
type Degree string

const (
	DegreeBachelor  Degree = "BachelorDegree"
	DegreeMaster    Degree = "MasterDegree"
	DegreeDoctorate Degree = "Doctorate"
)

var Degrees = []Degree{DegreeBachelor, DegreeMaster, DegreeDoctorate}

func (d Degree) Valid() bool {
	switch d {
	case DegreeBachelor, DegreeMaster, DegreeDoctorate:
		return true
	}
	return false
}

// Budget holds one amount per degree.
type Budget struct {
	BachelorDegree float64 `json:"BachelorDegree" validate:"gte=0"`
	MasterDegree   float64 `json:"MasterDegree" validate:"gte=0"`
	Doctorate      float64 `json:"Doctorate" validate:"gte=0"`
}

func (b Budget) Of(d Degree) float64 {
	switch d {
	case DegreeBachelor:
		return b.BachelorDegree
	case DegreeMaster:
		return b.MasterDegree
	case DegreeDoctorate:
		return b.Doctorate
	}
	return 0
}

// Add returns a copy of b where the amount of d is incremented by amt.
func (b Budget) Add(d Degree, amt float64) Budget {
	switch d {
	case DegreeBachelor:
		b.BachelorDegree += amt
	case DegreeMaster:
		b.MasterDegree += amt
	case DegreeDoctorate:
		b.Doctorate += amt
	}
	return b
}
