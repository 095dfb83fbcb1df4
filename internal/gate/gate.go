// Package gate decides whether a user may start seller registration based on
// the certifications they hold. It performs no I/O.
package gate

import (
	"fmt"
	"skillcert_backend/internal/model"
)

// DefaultPassScore is the lowest certification score that unlocks selling.
const DefaultPassScore = 70

const (
	MessageNoCertification = "Please complete a skill assessment before you start selling on our platform."
	messageBelowThreshold  = "You need to pass at least one skill assessment with a score of %d or higher before you start selling."
)

type Outcome int

const (
	Allowed Outcome = iota
	BlockedNoCertification
	BlockedBelowThreshold
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case BlockedNoCertification:
		return "no_certification"
	case BlockedBelowThreshold:
		return "below_threshold"
	}
	return "unknown"
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	for _, v := range []Outcome{Allowed, BlockedNoCertification, BlockedBelowThreshold} {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("gate: unknown outcome %q", b)
}

type Decision struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message,omitempty"`
	// Qualifying is the best passing certification when Outcome is Allowed.
	Qualifying *model.Certification `json:"qualifying,omitempty"`
}

func (d Decision) Allowed() bool { return d.Outcome == Allowed }

func BelowThresholdMessage(passScore int) string {
	return fmt.Sprintf(messageBelowThreshold, passScore)
}

// Decide applies the gate. passScore <= 0 means DefaultPassScore.
func Decide(certs []model.Certification, passScore int) Decision {
	if passScore <= 0 {
		passScore = DefaultPassScore
	}
	if len(certs) == 0 {
		return Decision{Outcome: BlockedNoCertification, Message: MessageNoCertification}
	}

	var best *model.Certification
	for i := range certs {
		c := &certs[i]
		if c.Score < passScore {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	if best == nil {
		return Decision{Outcome: BlockedBelowThreshold, Message: BelowThresholdMessage(passScore)}
	}
	return Decision{Outcome: Allowed, Qualifying: best}
}
