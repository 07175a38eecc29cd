package funnel

import (
	"errors"
	"math"
	"time"
)

type Stage string

const (
	StageHomepageVisit  Stage = "homepage_visit"
	StageHelmetSearch   Stage = "helmet_search"
	StageHelmetView     Stage = "helmet_view"
	StageAffiliateClick Stage = "affiliate_click"
	StageExternalVisit  Stage = "external_visit"
)

// Stages lists the funnel in its nominal order.
var Stages = []Stage{
	StageHomepageVisit,
	StageHelmetSearch,
	StageHelmetView,
	StageAffiliateClick,
	StageExternalVisit,
}

func (s Stage) Valid() bool {
	for _, known := range Stages {
		if s == known {
			return true
		}
	}
	return false
}

// DefaultClickValue is the purchase-intent weight an affiliate click carries
// when the caller does not supply a value.
const DefaultClickValue = 10.0

var ErrMalformedEvent = errors.New("malformed funnel event")

// Event is one funnel touchpoint. Events are appended to the log and never
// mutated afterwards.
type Event struct {
	SessionID string    `json:"session_id"`
	Stage     Stage     `json:"stage"`
	HelmetID  string    `json:"helmet_id,omitempty"`
	Network   string    `json:"network,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e Event) Validate() error {
	if e.SessionID == "" {
		return errors.Join(ErrMalformedEvent, errors.New("missing session id"))
	}
	if e.Stage == "" {
		return errors.Join(ErrMalformedEvent, errors.New("missing stage"))
	}
	if !e.Stage.Valid() {
		return errors.Join(ErrMalformedEvent, errors.New("unknown stage "+string(e.Stage)))
	}
	if e.Value != nil && !Finite(*e.Value) {
		return errors.Join(ErrMalformedEvent, errors.New("value is not a finite number"))
	}
	return nil
}

// Weight is the event's value, falling back to the stage default when absent.
func (e Event) Weight(clickValue float64) float64 {
	if e.Value != nil {
		return *e.Value
	}
	if e.Stage == StageAffiliateClick {
		return clickValue
	}
	return 0
}

// Finite reports whether v can be stored as an event value.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Float returns a pointer to v, for filling Event.Value.
func Float(v float64) *float64 {
	return &v
}
