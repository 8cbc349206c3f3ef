package root

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"sync", "context", "chat", "sessions", "edits", "config"}, names)
}

func TestNewRootCmd_RepoFlagDefaultsToCurrentDir(t *testing.T) {
	cmd := NewRootCmd()

	flag := cmd.PersistentFlags().Lookup("repo")
	assert.NotNil(t, flag)
	assert.Equal(t, ".", flag.DefValue)
}
