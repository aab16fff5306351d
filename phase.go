package trafficlight

type Phase string

const (
	PhaseNone  Phase = ""
	PhaseRed   Phase = "red"
	PhaseGreen Phase = "green"
)

// Next returns the phase the light switches to after p.
func (p Phase) Next() Phase {
	if p == PhaseRed {
		return PhaseGreen
	}
	return PhaseRed
}
