package gesture

import "github.com/ayusman/handcursor/internal/body"

// ActiveHand picks the hand that drives the cursor: the raised one.
// The right hand wins unless the left hand is strictly higher.
func ActiveHand(left, right body.HandSample) body.HandSample {
	if left.Position.Y > right.Position.Y {
		return left
	}
	return right
}
