package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListRunsCommandStructure(t *testing.T) {
	assert.NotNil(t, listRunsCmd)
	assert.Equal(t, "list-runs", listRunsCmd.Use)
	assert.NotEmpty(t, listRunsCmd.Short)
	assert.NotEmpty(t, listRunsCmd.Long)
	assert.NotNil(t, listRunsCmd.RunE)
}

func TestListRunsCommandFlags(t *testing.T) {
	flags := listRunsCmd.Flags()

	limitFlag, err := flags.GetInt("limit")
	assert.NoError(t, err)
	assert.Equal(t, 20, limitFlag)
}

func TestListRunsIsAddedToRoot(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "list-runs" {
			found = true
			break
		}
	}
	assert.True(t, found, "list-runs command should be added to root command")
}
