package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"serve", "migrate", "repair-order-numbers"}, names)
}

func TestRootCommand_BadConfigFails(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"migrate", "--config", "/does/not/exist.yaml"})

	err := root.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestRepairCommand_HasDryRunFlag(t *testing.T) {
	cmd := repairCmd(nil)

	flag := cmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
