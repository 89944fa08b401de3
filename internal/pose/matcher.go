// Package pose recognizes the hand states the gesture classifier works
// with (open, closed, lasso) from detected hand landmarks.
package pose

import (
	"math"
	"sort"
	"sync"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/detector"
)

// DefaultTolerance is the mean per-landmark distance, in normalized hand
// units, under which a hand matches a template.
const DefaultTolerance = 0.35

// Template is a reference hand shape for one state.
type Template struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	State     body.HandState     `json:"state"`
	Landmarks []detector.Point3D `json:"landmarks"` // canonical: normalized, right-handed
	Builtin   bool               `json:"builtin"`
}

// Match is a template within tolerance of a hand.
type Match struct {
	Template *Template
	Score    float64 // 0-1, higher is better
	Distance float64
}

// Matcher classifies hands against a set of templates. Safe for
// concurrent use.
type Matcher struct {
	mu        sync.RWMutex
	templates []*Template
	tolerance float64
}

// NewMatcher creates a matcher with no templates.
func NewMatcher(tolerance float64) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Matcher{tolerance: tolerance}
}

// NewDefaultMatcher creates a matcher loaded with the built-in templates.
func NewDefaultMatcher(tolerance float64) *Matcher {
	m := NewMatcher(tolerance)
	for _, t := range Builtin() {
		m.AddTemplate(t)
	}
	return m
}

// Builtin returns the templates derived from the reference poses.
func Builtin() []*Template {
	open := detector.OpenPalmLandmarks()
	fist := detector.FistLandmarks()
	lasso := detector.LassoLandmarks()

	return []*Template{
		{ID: "builtin-open", Name: "Open palm", State: body.Open, Landmarks: Canonical(&open), Builtin: true},
		{ID: "builtin-closed", Name: "Fist", State: body.Closed, Landmarks: Canonical(&fist), Builtin: true},
		{ID: "builtin-lasso", Name: "Two fingers", State: body.Lasso, Landmarks: Canonical(&lasso), Builtin: true},
	}
}

// Tolerance returns the current match tolerance.
func (m *Matcher) Tolerance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tolerance
}

// SetTolerance changes the match tolerance. Non-positive values are ignored.
func (m *Matcher) SetTolerance(tolerance float64) {
	if tolerance <= 0 || math.IsNaN(tolerance) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tolerance = tolerance
}

// AddTemplate adds t, replacing any template with the same ID.
func (m *Matcher) AddTemplate(t *Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = upsert(m.templates, t)
}

// ReplaceTrained swaps every non-builtin template for ts in one step, so a
// concurrent Classify sees either the old set or the new one.
func (m *Matcher) ReplaceTrained(ts []*Template) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make([]*Template, 0, len(m.templates)+len(ts))
	for _, t := range m.templates {
		if t.Builtin {
			next = append(next, t)
		}
	}
	for _, t := range ts {
		next = upsert(next, t)
	}
	m.templates = next
}

func upsert(list []*Template, t *Template) []*Template {
	if t == nil || len(t.Landmarks) != detector.NumLandmarks {
		return list
	}
	for i, existing := range list {
		if existing.ID == t.ID {
			list[i] = t
			return list
		}
	}
	return append(list, t)
}

// Templates returns a copy of the template list.
func (m *Matcher) Templates() []*Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Template, len(m.templates))
	copy(out, m.templates)
	return out
}

// Match returns every template within tolerance of hand, best first.
func (m *Matcher) Match(hand *detector.HandLandmarks) []Match {
	if hand == nil {
		return nil
	}

	input := Canonical(hand)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, t := range m.templates {
		distance := meanDistance(input, t.Landmarks)
		if distance > m.tolerance {
			continue
		}
		matches = append(matches, Match{
			Template: t,
			Score:    1.0 / (1.0 + distance),
			Distance: distance,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches
}

// Classify returns the state of the best matching template, or Unknown when
// nothing is within tolerance.
func (m *Matcher) Classify(hand *detector.HandLandmarks) body.HandState {
	matches := m.Match(hand)
	if len(matches) == 0 {
		return body.Unknown
	}
	return matches[0].Template.State
}

// Canonical normalizes hand for position and scale and mirrors left hands
// so every template can be stored right-handed.
func Canonical(hand *detector.HandLandmarks) []detector.Point3D {
	normalized := hand.Normalize()
	if normalized == nil {
		return nil
	}
	points := make([]detector.Point3D, detector.NumLandmarks)
	copy(points, normalized.Points[:])
	if normalized.Handedness == string(body.Left) {
		for i := range points {
			points[i].X = -points[i].X
		}
	}
	return points
}

// meanDistance is the mean Euclidean distance between corresponding
// landmarks. Mismatched lengths never match.
func meanDistance(a, b []detector.Point3D) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var total float64
	for i := range a {
		total += a[i].Sub(b[i]).Length()
	}
	return total / float64(len(a))
}
