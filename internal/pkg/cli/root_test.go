package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandHelp(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(""), &out, &errOut, []string{"etcdmq", "--help"})
	assert.Equal(t, 0, cmd.Execute())
	assert.Contains(t, out.String(), "Distributed work queue on top of etcd.")
	assert.Contains(t, out.String(), "reserve")
	assert.Contains(t, out.String(), "collect")
}

func TestRootCommandVersion(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(""), &out, &errOut, []string{"etcdmq", "--version"})
	assert.Equal(t, 0, cmd.Execute())
	assert.Contains(t, out.String(), "Version:")
	assert.Contains(t, out.String(), "Go version:")
}

func TestRootCommandUnknown(t *testing.T) {
	t.Parallel()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(""), &out, &errOut, []string{"etcdmq", "unknown-sub-command"})
	assert.Equal(t, 1, cmd.Execute())
}
