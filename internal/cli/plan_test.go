package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/grove/pkg/domain"
)

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlan(t *testing.T) {
	path := writePlan(t, `
items:
  - op: create
    key: alice
    agent_id: support-bot
    state:
      user_name: Alice
      visits: 3
  - op: message
    session_id: abc-123
    text: "Hello!"
  - op: delete
    session_id: abc-123
`)

	items, err := LoadPlan(path)
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.Equal(t, domain.OpCreate, items[0].Op)
	require.Equal(t, "alice", items[0].Key)
	visits, ok := items[0].State["visits"].AsInt()
	require.True(t, ok, "yaml integers stay integers")
	require.Equal(t, int64(3), visits)

	require.Equal(t, domain.OpMessage, items[1].Op)
	require.Equal(t, "Hello!", items[1].Text)
	require.Equal(t, domain.OpDelete, items[2].Op)
}

func TestLoadPlanRejectsInvalidItem(t *testing.T) {
	path := writePlan(t, `
items:
  - op: create
    agent_id: support-bot
  - op: message
    text: "missing session"
`)

	_, err := LoadPlan(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "item 1")
}

func TestLoadPlanEmptyAndMissing(t *testing.T) {
	_, err := LoadPlan(writePlan(t, "items: []"))
	require.Error(t, err)

	_, err = LoadPlan(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
