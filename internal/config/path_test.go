package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("TITHE_TEST_DIR", "/srv/ledger")

	tests := []struct {
		in, want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/data/tithe.db", want: filepath.Join(home, "data/tithe.db")},
		{in: "$TITHE_TEST_DIR/tithe.db", want: "/srv/ledger/tithe.db"},
		{in: "/abs/path", want: "/abs/path"},
		{in: "~other/x", want: "~other/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandPath(tt.in), tt.in)
	}
}
