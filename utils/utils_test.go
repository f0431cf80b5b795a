// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitSubDirectory(t *testing.T) {
	require := require.New(t)

	root := t.TempDir()
	p, err := InitSubDirectory(root, "blockdb")
	require.NoError(err)
	require.Equal(filepath.Join(root, "blockdb"), p)
	require.DirExists(p)

	// Existing directories are reused.
	_, err = InitSubDirectory(root, "blockdb")
	require.NoError(err)
}

func TestMap(t *testing.T) {
	out := Map(strconv.Itoa, []int{1, 2, 3})
	require.Equal(t, []string{"1", "2", "3"}, out)
}
