// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/eliteGoblin/shield/internal/infra"
)

// ShellInterpreter runs fixture scripts with /bin/sh instead of PowerShell.
func ShellInterpreter() infra.Interpreter {
	return infra.Interpreter{Name: "sh", Path: "/bin/sh", Ext: ".sh"}
}

// ScriptDir is a directory of stub scripts that speak the script protocol:
// one JSON value on stdout, state kept in a sibling .state file.
type ScriptDir struct {
	Root string
}

// NewScriptDir creates the directory.
func NewScriptDir(root string) (*ScriptDir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &ScriptDir{Root: root}, nil
}

const toggleTemplate = `#!/bin/sh
state="$(dirname "$0")/%[1]s.state"
if [ "$1" = "-Action" ]; then
  case "$2" in
    Enable) echo true > "$state" ;;
    Disable) echo false > "$state" ;;
  esac
  echo '{"success":true}'
  exit 0
fi
enabled=$(cat "$state" 2>/dev/null || echo %[2]s)
if [ "$enabled" = true ]; then st="At Risk"; else st="Safe"; fi
printf '{"enabled":%%s,"status":"%%s","details":"stub"}\n' "$enabled" "$st"
`

// WriteToggle writes a module script whose initial state is enabled.
func (d *ScriptDir) WriteToggle(name string, enabled bool) error {
	return d.write(name, fmt.Sprintf(toggleTemplate, name, strconv.FormatBool(enabled)))
}

// WriteJSON writes a script that prints payload regardless of arguments.
func (d *ScriptDir) WriteJSON(name, payload string) error {
	return d.write(name, fmt.Sprintf("#!/bin/sh\ncat <<'EOF'\n%s\nEOF\n", payload))
}

// WriteEcho writes a script that reports its arguments as a JSON array.
func (d *ScriptDir) WriteEcho(name string) error {
	return d.write(name, `#!/bin/sh
printf '['
sep=""
for a in "$@"; do printf '%s"%s"' "$sep" "$a"; sep=","; done
printf ']\n'
`)
}

// WriteFailing writes a script that exits with code after writing stderr.
func (d *ScriptDir) WriteFailing(name string, code int) error {
	return d.write(name, fmt.Sprintf("#!/bin/sh\necho 'Access is denied.' >&2\nexit %d\n", code))
}

// Enabled reads a toggle script's persisted state.
func (d *ScriptDir) Enabled(name string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(d.Root, name+".state"))
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(string(trimNewline(data)))
}

func (d *ScriptDir) write(name, body string) error {
	return os.WriteFile(filepath.Join(d.Root, name+".sh"), []byte(body), 0755)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
