package recovery

// Strategy decides how the reading pipeline reacts to malformed input.
type Strategy interface {
	OnError(err error, location Location) Action
}

// Location pinpoints where in the document an error was detected.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)
