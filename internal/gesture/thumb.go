package gesture

import (
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// ThumbRule selects how the thumb contributes to the open-finger tally.
type ThumbRule string

const (
	// ThumbRuleLateral treats the thumb as raised when its tip lies left of
	// its IP joint in the image. It assumes a right hand facing the camera.
	ThumbRuleLateral ThumbRule = "lateral"
	// ThumbRuleDistance treats the thumb as folded when its tip is closer to
	// the wrist than its IP joint is.
	ThumbRuleDistance ThumbRule = "distance"
)

// DefaultThumbRule is used when no rule is configured.
const DefaultThumbRule = ThumbRuleDistance

// ThumbStrategy reports whether the thumb counts as raised.
type ThumbStrategy func(hand *detector.HandLandmarks) bool

var thumbStrategies = map[ThumbRule]ThumbStrategy{
	ThumbRuleLateral:  ThumbRaisedLateral,
	ThumbRuleDistance: ThumbRaisedDistance,
}

// ParseThumbRule converts a configuration string to a ThumbRule.
// The empty string selects DefaultThumbRule.
func ParseThumbRule(s string) (ThumbRule, error) {
	if s == "" {
		return DefaultThumbRule, nil
	}
	rule := ThumbRule(s)
	if _, ok := thumbStrategies[rule]; !ok {
		return "", fmt.Errorf("unknown thumb rule %q (want %q or %q)", s, ThumbRuleLateral, ThumbRuleDistance)
	}
	return rule, nil
}

// ThumbRaisedLateral: tip x strictly less than IP x.
func ThumbRaisedLateral(hand *detector.HandLandmarks) bool {
	return hand.Points[detector.ThumbTip].X < hand.Points[detector.ThumbIP].X
}

// ThumbRaisedDistance: raised unless the tip is strictly closer to the wrist
// than the IP joint, measured in the image plane.
func ThumbRaisedDistance(hand *detector.HandLandmarks) bool {
	wrist := hand.Points[detector.Wrist]
	tip := detector.Distance2D(hand.Points[detector.ThumbTip], wrist)
	ip := detector.Distance2D(hand.Points[detector.ThumbIP], wrist)
	return !(tip < ip)
}
