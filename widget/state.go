package widget

type State int

const (
	Unattached State = iota
	Loading
	Ready
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// armed reports whether a session is loaded and playback controls apply.
func (s State) armed() bool {
	return s == Ready || s == Playing || s == Paused || s == Stopped
}
