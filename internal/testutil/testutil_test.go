// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := MustWriteFile(t, dir, "docker/base/Dockerfile", "FROM scratch\n")
	assert.Equal(t, filepath.Join(dir, "docker", "base", "Dockerfile"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FROM scratch\n", string(data))
}

func TestMustUnsetenv(t *testing.T) {
	t.Setenv("DTOX_TESTUTIL_PROBE", "set")

	t.Run("unset", func(t *testing.T) {
		MustUnsetenv(t, "DTOX_TESTUTIL_PROBE")
		_, ok := os.LookupEnv("DTOX_TESTUTIL_PROBE")
		assert.False(t, ok)
	})

	assert.Equal(t, "set", os.Getenv("DTOX_TESTUTIL_PROBE"), "value restored after the subtest")
}

func TestMustChdir(t *testing.T) {
	original, err := os.Getwd()
	require.NoError(t, err)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	t.Run("chdir", func(t *testing.T) {
		MustChdir(t, dir)
		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, dir, wd)
	})

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, original, wd)
}

func TestContainerParallelism(t *testing.T) {
	t.Setenv("DTOX_TEST_CONTAINER_PARALLEL", "5")
	assert.Equal(t, 5, containerParallelism())

	t.Setenv("DTOX_TEST_CONTAINER_PARALLEL", "nope")
	assert.LessOrEqual(t, containerParallelism(), 2)
}
