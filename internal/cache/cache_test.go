package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/fingerprint"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

func fp(source string) fingerprint.Fingerprint {
	return fingerprint.Compute(source, product.Spec{Kind: product.KindElevation}, nil)
}

func testArtifact(kind string) *raster.Artifact {
	g := raster.NewGrid(2, 2, 1, raster.GeoRef{OriginX: 10, OriginY: 20, PixelSize: 0.5, CRS: "EPSG:32633"})
	copy(g.Band(0), []float64{1, 2, 3, 4})
	return &raster.Artifact{Kind: kind, Grid: g}
}

func TestGetOrBuildMissThenHit(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	builds := 0
	build := func(context.Context) (*raster.Artifact, error) {
		builds++
		return testArtifact("elevation"), nil
	}

	a, hit, err := c.GetOrBuild(context.Background(), fp("a"), build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, string(fp("a")), a.Fingerprint)
	assert.False(t, a.CreatedAt.IsZero())

	again, hit, err := c.GetOrBuild(context.Background(), fp("a"), build)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, a, again)
	assert.Equal(t, 1, builds)
}

func TestGetOrBuildSingleFlight(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	var invocations atomic.Int32
	started := make(chan struct{})
	var startedOnce sync.Once
	release := make(chan struct{})
	build := func(context.Context) (*raster.Artifact, error) {
		invocations.Add(1)
		startedOnce.Do(func() { close(started) })
		<-release
		return testArtifact("elevation"), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*raster.Artifact, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, _, err := c.GetOrBuild(context.Background(), fp("shared"), build)
			require.NoError(t, err)
			results[i] = a
		}(i)
	}
	// Wait for the first build to start, then release it.
	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), invocations.Load(), "exactly one build for concurrent callers")
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestGetOrBuildSharedFailure(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	sentinel := errors.New("engine exploded")
	_, _, err = c.GetOrBuild(context.Background(), fp("bad"), func(context.Context) (*raster.Artifact, error) {
		return nil, sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	// A failed build is not committed; the next call tries again.
	a, hit, err := c.GetOrBuild(context.Background(), fp("bad"), func(context.Context) (*raster.Artifact, error) {
		return testArtifact("elevation"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, a)
}

func TestDiskPersistenceAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	c1, err := New(dir)
	require.NoError(t, err)
	orig, _, err := c1.GetOrBuild(context.Background(), fp("persist"), func(context.Context) (*raster.Artifact, error) {
		return testArtifact("hillshade"), nil
	})
	require.NoError(t, err)

	// A fresh instance over the same directory serves the entry without
	// building.
	c2, err := New(dir)
	require.NoError(t, err)
	got, hit, err := c2.GetOrBuild(context.Background(), fp("persist"), func(context.Context) (*raster.Artifact, error) {
		t.Fatal("build must not run for a persisted entry")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, orig.Fingerprint, got.Fingerprint)
	assert.Equal(t, "hillshade", got.Kind)
	assert.Equal(t, orig.Grid.Data, got.Grid.Data)
	assert.Equal(t, orig.Grid.Geo, got.Grid.Geo, "georeferencing survives persistence")
}

func TestMeta(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	_, ok := c.Meta(fp("none"))
	assert.False(t, ok)

	_, _, err = c.GetOrBuild(context.Background(), fp("m"), func(context.Context) (*raster.Artifact, error) {
		return testArtifact("slope"), nil
	})
	require.NoError(t, err)

	m, ok := c.Meta(fp("m"))
	require.True(t, ok)
	assert.Equal(t, "slope", m.Kind)
	assert.Equal(t, 2, m.Cols)
	assert.Equal(t, "EPSG:32633", m.Geo.CRS)
}
