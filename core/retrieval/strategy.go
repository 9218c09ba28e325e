package retrieval

import (
	"github.com/siherrmann/geoalert/model"
)

// ResolutionPolicy picks the entity an answer is built from out of the ranked matches.
type ResolutionPolicy interface {
	Resolve(matches []*model.LocationMatch) (*model.LocationMatch, bool)
}

// TopOneResolution resolves to the best ranked match.
type TopOneResolution struct{}

// NewTopOneResolution creates the top-1 policy
func NewTopOneResolution() *TopOneResolution {
	return &TopOneResolution{}
}

// Resolve returns the first match, or false if there is none.
func (p *TopOneResolution) Resolve(matches []*model.LocationMatch) (*model.LocationMatch, bool) {
	for _, m := range matches {
		if m != nil {
			return m, true
		}
	}
	return nil, false
}
