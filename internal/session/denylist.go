package session

import "strings"

// defaultDenylistSubstrings names the tool-name fragments considered
// destructive by default. A tool whose exposed or original name contains
// any of these, case-insensitively, is refused by CallTool unless yolo
// mode is enabled.
var defaultDenylistSubstrings = []string{
	"delete",
	"drop",
	"destroy",
	"remove",
	"purge",
	"truncate",
	"wipe",
	"terminate",
	"kill",
}

// Denylist guards destructive tool calls. The zero value uses the default
// substring list.
type Denylist struct {
	substrings []string
	yolo       bool
}

// NewDenylist creates a Denylist using the default destructive-substring
// list. yolo, when true, disables the guard entirely.
func NewDenylist(yolo bool) *Denylist {
	return &Denylist{substrings: defaultDenylistSubstrings, yolo: yolo}
}

// IsBlocked reports whether toolName should be refused. Matching is
// case-insensitive substring containment against both the exposed name and
// the original upstream tool name.
func (d *Denylist) IsBlocked(exposedName, originalName string) bool {
	if d == nil || d.yolo {
		return false
	}
	lowerExposed := strings.ToLower(exposedName)
	lowerOriginal := strings.ToLower(originalName)
	substrings := d.substrings
	if substrings == nil {
		substrings = defaultDenylistSubstrings
	}
	for _, frag := range substrings {
		if strings.Contains(lowerExposed, frag) || strings.Contains(lowerOriginal, frag) {
			return true
		}
	}
	return false
}

// IsYoloMode reports whether the destructive-tool guard is disabled.
func (d *Denylist) IsYoloMode() bool {
	return d != nil && d.yolo
}
