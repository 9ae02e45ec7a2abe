package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenylistBlocksDestructiveSubstrings(t *testing.T) {
	d := NewDenylist(false)

	assert.True(t, d.IsBlocked("github_1mcp_delete_repo", "delete_repo"))
	assert.True(t, d.IsBlocked("github_1mcp_DropTable", "DropTable"))
	assert.False(t, d.IsBlocked("github_1mcp_list_repos", "list_repos"))
}

func TestDenylistYoloModeDisablesGuard(t *testing.T) {
	d := NewDenylist(true)
	assert.False(t, d.IsBlocked("github_1mcp_delete_repo", "delete_repo"))
	assert.True(t, d.IsYoloMode())
}

func TestDenylistNilIsUnblocked(t *testing.T) {
	var d *Denylist
	assert.False(t, d.IsBlocked("anything_delete", "delete"))
}
