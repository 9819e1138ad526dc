package cmd

import (
	"encoding/json"
	"testing"

	"github.com/fulmenhq/ppackage/pkg/exitcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labelDockerfile = "# syntax=docker/dockerfile:1\nFROM alpine\nLABEL maintainer=ops team=\"platform eng\"\nRUN apk add git \\\n    curl\n"

func TestLabel_List(t *testing.T) {
	dir := writeProject(t, map[string]string{"Dockerfile": labelDockerfile})

	out, err := execRoot(t, dir, "label", "list")
	require.NoError(t, err)
	assert.Equal(t, "maintainer=ops\nteam=platform eng\n", out)

	out, err = execRoot(t, dir, "label", "list", "--format", "json")
	require.NoError(t, err)
	var labels map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &labels))
	assert.Equal(t, map[string]string{"maintainer": "ops", "team": "platform eng"}, labels)
}

func TestLabel_Get(t *testing.T) {
	dir := writeProject(t, map[string]string{"build/Dockerfile": labelDockerfile})

	out, err := execRoot(t, dir, "label", "get", "team", "--file", "build/Dockerfile")
	require.NoError(t, err)
	assert.Equal(t, "platform eng\n", out)

	_, err = execRoot(t, dir, "label", "get", "missing", "--file", "build/Dockerfile")
	require.ErrorIs(t, err, errLabelNotFound)
}

func TestLabel_SetKeepsOtherLines(t *testing.T) {
	dir := writeProject(t, map[string]string{"Dockerfile": labelDockerfile})

	_, err := execRoot(t, dir, "label", "set", "team", "infra")
	require.NoError(t, err)
	assert.Equal(t,
		"# syntax=docker/dockerfile:1\nFROM alpine\nLABEL \"maintainer\"=\"ops\" \"team\"=\"infra\"\nRUN apk add git \\\n    curl\n",
		readProject(t, dir, "Dockerfile"))

	_, err = execRoot(t, dir, "label", "set", "org.opencontainers.image.title", "app")
	require.NoError(t, err)
	assert.Contains(t, readProject(t, dir, "Dockerfile"), "    curl\nLABEL \"org.opencontainers.image.title\"=\"app\"\n")
}

func TestLabel_SetUnchangedLeavesFile(t *testing.T) {
	dir := writeProject(t, map[string]string{"Dockerfile": labelDockerfile})

	_, err := execRoot(t, dir, "label", "set", "maintainer", "ops")
	require.NoError(t, err)
	assert.Equal(t, labelDockerfile, readProject(t, dir, "Dockerfile"))
}

func TestLabel_Remove(t *testing.T) {
	dir := writeProject(t, map[string]string{"Dockerfile": labelDockerfile})

	_, err := execRoot(t, dir, "label", "rm", "maintainer")
	require.NoError(t, err)
	assert.Equal(t,
		"# syntax=docker/dockerfile:1\nFROM alpine\nLABEL \"team\"=\"platform eng\"\nRUN apk add git \\\n    curl\n",
		readProject(t, dir, "Dockerfile"))

	_, err = execRoot(t, dir, "label", "rm", "maintainer")
	require.ErrorIs(t, err, errLabelNotFound)
}

func TestLabel_RejectsTraversal(t *testing.T) {
	dir := writeProject(t, map[string]string{"Dockerfile": labelDockerfile})

	_, err := execRoot(t, dir, "label", "list", "--file", "../Dockerfile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestLabel_MissingFile(t *testing.T) {
	dir := writeProject(t, nil)

	_, err := execRoot(t, dir, "label", "list")
	require.Error(t, err)
	assert.Equal(t, exitcode.FileSystemError, exitCodeFor(err))
}
