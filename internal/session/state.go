package session

// State is the session's position in the identity lifecycle.
type State int

const (
	Anonymous State = iota
	Resolving
	Authenticated
	Rejected
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Resolving:
		return "resolving"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Decision tells the shell what to render.
type Decision string

const (
	DecisionLoading   Decision = "loading"
	DecisionRedirect  Decision = "redirect-to-login"
	DecisionRenderApp Decision = "render-app"
)

// Decide maps a state to its access decision.
func Decide(s State) Decision {
	switch s {
	case Resolving:
		return DecisionLoading
	case Authenticated:
		return DecisionRenderApp
	default:
		return DecisionRedirect
	}
}
