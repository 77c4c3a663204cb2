// Package gesture classifies a single hand landmark set into an open/closed
// gesture label and a raised-finger count.
package gesture

import (
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// ErrMalformedLandmarks is returned when the classifier is handed a landmark
// set it cannot trust. It is the same sentinel the detector package uses.
var ErrMalformedLandmarks = detector.ErrMalformedLandmarks

// Label is the discrete gesture derived from one frame.
type Label string

const (
	LabelHandOpen    Label = "Hand Open"
	LabelFistClosed  Label = "Fist Closed"
	LabelPartialOpen Label = "Partially Open Hand"
	LabelNoHand      Label = "No Hand Detected"
)

// Labels lists every label in display order.
var Labels = []Label{LabelHandOpen, LabelFistClosed, LabelPartialOpen, LabelNoHand}

func (l Label) String() string {
	return string(l)
}

// Valid reports whether l is one of the four known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelHandOpen, LabelFistClosed, LabelPartialOpen, LabelNoHand:
		return true
	}
	return false
}

// StrictOffset is the largest horizontal tip-to-knuckle offset, in normalized
// image coordinates, for a finger to count toward FingersRaised.
const StrictOffset = 0.1

// OpenThreshold is the open-finger tally at or above which a hand is open.
const OpenThreshold = 3

// Result is the classification of one frame.
type Result struct {
	Label Label `json:"label"`
	// OpenFingers is the tally behind Label: four vertical finger tests plus
	// the configured thumb rule.
	OpenFingers int `json:"open_fingers"`
	// FingersRaised is the display count. Each finger must be above its
	// knuckle and within StrictOffset of it horizontally. It can differ from
	// OpenFingers on the same hand.
	FingersRaised int `json:"fingers_raised"`
}

// NoHand is the result for a frame without a detected hand.
var NoHand = Result{Label: LabelNoHand}

// finger pairs a tip with the knuckle it is compared against.
type finger struct {
	tip, knuckle int
}

var (
	// longFingers are the four non-thumb fingers, tip against MCP.
	longFingers = [4]finger{
		{detector.IndexTip, detector.IndexMCP},
		{detector.MiddleTip, detector.MiddleMCP},
		{detector.RingTip, detector.RingMCP},
		{detector.PinkyTip, detector.PinkyMCP},
	}

	// allFingers adds the thumb, tip against thumb MCP, for the strict count.
	allFingers = [5]finger{
		{detector.ThumbTip, detector.ThumbMCP},
		longFingers[0], longFingers[1], longFingers[2], longFingers[3],
	}
)

// Classifier maps landmark sets to results. It holds only configuration and
// is safe for concurrent use.
type Classifier struct {
	thumbRule ThumbRule
	thumb     ThumbStrategy
}

// NewClassifier returns a classifier using the given thumb rule. An unknown
// rule falls back to DefaultThumbRule.
func NewClassifier(rule ThumbRule) *Classifier {
	strategy, ok := thumbStrategies[rule]
	if !ok {
		rule = DefaultThumbRule
		strategy = thumbStrategies[rule]
	}
	return &Classifier{thumbRule: rule, thumb: strategy}
}

// ThumbRule returns the thumb rule in effect.
func (c *Classifier) ThumbRule() ThumbRule {
	return c.thumbRule
}

// Classify labels a single hand. A nil hand yields NoHand. Landmark sets with
// non-finite coordinates are rejected with ErrMalformedLandmarks.
func (c *Classifier) Classify(hand *detector.HandLandmarks) (Result, error) {
	if hand == nil {
		return NoHand, nil
	}
	if err := hand.Validate(); err != nil {
		return Result{}, err
	}

	open := OpenFingers(hand, c.thumb)
	return Result{
		Label:         labelFor(open),
		OpenFingers:   open,
		FingersRaised: FingersRaised(hand),
	}, nil
}

// ClassifyHands labels the first detected hand, or NoHand if there is none.
func (c *Classifier) ClassifyHands(hands []detector.HandLandmarks) (Result, error) {
	if len(hands) == 0 {
		return NoHand, nil
	}
	return c.Classify(&hands[0])
}

// ClassifyPoints builds a landmark set from a raw point slice and classifies
// it. Slices that are not exactly 21 points long are rejected.
func (c *Classifier) ClassifyPoints(points []detector.Point3D) (Result, error) {
	hand, err := detector.NewHandLandmarks(points, "", 0)
	if err != nil {
		return Result{}, fmt.Errorf("classify: %w", err)
	}
	return c.Classify(&hand)
}

// OpenFingers counts the four long fingers whose tip is above their MCP plus
// the thumb according to thumb.
func OpenFingers(hand *detector.HandLandmarks, thumb ThumbStrategy) int {
	n := 0
	for _, f := range longFingers {
		if hand.Points[f.tip].Y < hand.Points[f.knuckle].Y {
			n++
		}
	}
	if thumb(hand) {
		n++
	}
	return n
}

// FingersRaised counts fingers whose tip is above their knuckle and within
// StrictOffset of it horizontally.
func FingersRaised(hand *detector.HandLandmarks) int {
	n := 0
	for _, f := range allFingers {
		tip, knuckle := hand.Points[f.tip], hand.Points[f.knuckle]
		dx := tip.X - knuckle.X
		if dx < 0 {
			dx = -dx
		}
		if tip.Y < knuckle.Y && dx < StrictOffset {
			n++
		}
	}
	return n
}

func labelFor(openFingers int) Label {
	switch {
	case openFingers == 0:
		return LabelFistClosed
	case openFingers >= OpenThreshold:
		return LabelHandOpen
	default:
		return LabelPartialOpen
	}
}
