// SPDX-License-Identifier: MPL-2.0

package shard

import (
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sthagen/pantsbuild-pex/internal/identity"
	"github.com/sthagen/pantsbuild-pex/internal/testutil"
)

// checkTestcontainersAvailable reports whether a container provider can be
// reached. Provider detection panics on some hosts without a daemon.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

func TestMergeAndPublish_PushToRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping registry integration test: no container provider available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx := t.Context()
	registry, err := testcontainers.Run(ctx, "registry:2",
		testcontainers.WithExposedPorts("5000/tcp"),
		testcontainers.WithWaitStrategy(wait.ForHTTP("/v2/").WithPort("5000/tcp")),
	)
	testcontainers.CleanupContainer(t, registry)
	require.NoError(t, err)

	endpoint, err := registry.PortEndpoint(ctx, "5000/tcp", "")
	require.NoError(t, err)

	target, err := identity.ParseImageRef(endpoint + "/dtox/cache:integration")
	require.NoError(t, err)

	m := NewMerger(MergerConfig{Insecure: true})
	digest, err := m.MergeAndPublish(ctx, shardFixtures(t, "py311", "py27"), target, PostActionPush)
	require.NoError(t, err)

	ref, err := name.NewTag(target.String(), name.Insecure)
	require.NoError(t, err)
	img, err := remote.Image(ref, remote.WithContext(ctx))
	require.NoError(t, err)

	got, err := img.Digest()
	require.NoError(t, err)
	assert.Equal(t, digest, got)

	cf, err := img.ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "py27,py311", cf.Config.Labels[LabelShards])
}
