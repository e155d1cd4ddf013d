package shell

import "fmt"

// Dialect is one supported shell flavor for activation scripts.
type Dialect string

const (
	Bash Dialect = "bash" // POSIX sh compatible: bash, zsh, dash
	Fish Dialect = "fish"
	Csh  Dialect = "csh"
	Cmd  Dialect = "cmd"
)

// DefaultDialects matches the upstream default of a single POSIX
// activation script.
var DefaultDialects = []Dialect{Bash}

var allDialects = map[Dialect]bool{Bash: true, Fish: true, Csh: true, Cmd: true}

// ParseDialects validates a configured dialect list.
func ParseDialects(names []string) ([]Dialect, error) {
	if len(names) == 0 {
		return DefaultDialects, nil
	}
	dialects := make([]Dialect, 0, len(names))
	for _, name := range names {
		d := Dialect(name)
		if !allDialects[d] {
			return nil, fmt.Errorf("unknown shell dialect %q (supported: bash, fish, csh, cmd)", name)
		}
		dialects = append(dialects, d)
	}
	return dialects, nil
}

// ScriptName returns the activation file name for a dialect, both for
// standalone scripts in the prefix and for locating a Python
// virtualenv's own activation script.
func (d Dialect) ScriptName() string {
	switch d {
	case Fish:
		return "activate.fish"
	case Csh:
		return "activate.csh"
	case Cmd:
		return "activate.bat"
	default:
		return "activate"
	}
}

// comment returns the dialect's line-comment prefix.
func (d Dialect) comment() string {
	if d == Cmd {
		return "REM"
	}
	return "#"
}
