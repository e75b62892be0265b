package session

import "fmt"

type Stage int

const (
	Created Stage = iota
	Initialized
	ToleranceSet
	Prepared
	Ready
	Failed
	Destroyed
)

func (s Stage) String() string {
	switch s {
	case Created:
		return "created"
	case Initialized:
		return "initialized"
	case ToleranceSet:
		return "tolerance-set"
	case Prepared:
		return "prepared"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// reached reports whether the configuration stage target has been passed.
// Failed and Destroyed never count as progress.
func (s Stage) reached(target Stage) bool {
	return s <= Ready && s >= target
}
