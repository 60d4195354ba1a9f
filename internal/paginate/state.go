package paginate

// State is a step of the per-category pagination loop
type State int

const (
	Fetching State = iota
	Extracting
	Advancing
	Retrying
	Done
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Extracting:
		return "extracting"
	case Advancing:
		return "advancing"
	case Retrying:
		return "retrying"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
