package cfgtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()

	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestPlanMerge_RecordsContributorsInPriorityOrder(t *testing.T) {
	srcA := t.TempDir()
	srcB := t.TempDir()
	writeFile(t, srcA, "app/settings.conf", "from-a")
	writeFile(t, srcB, "app/settings.conf", "from-b")
	writeFile(t, srcB, "app/only-b.conf", "b-only")

	plan, err := PlanMerge([]string{srcA, srcB})

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(srcA, "app", "settings.conf"),
		filepath.Join(srcB, "app", "settings.conf"),
	}, plan.Contributions(filepath.Join("app", "settings.conf")))
	assert.Equal(t, []string{
		filepath.Join(srcB, "app", "only-b.conf"),
	}, plan.Contributions(filepath.Join("app", "only-b.conf")))
}

func TestMaterialize_ConcatenatesInContributionOrder(t *testing.T) {
	// Path present in A and C but not B: the result must be A's content,
	// a newline, then C's content, regardless of B's absence.
	srcA := t.TempDir()
	srcB := t.TempDir()
	srcC := t.TempDir()
	writeFile(t, srcA, "db.conf", "host=a")
	writeFile(t, srcB, "other.conf", "unrelated")
	writeFile(t, srcC, "db.conf", "host=c")

	plan, err := PlanMerge([]string{srcA, srcB, srcC})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, plan.Materialize(dest))

	content, err := os.ReadFile(filepath.Join(dest, "db.conf"))
	require.NoError(t, err)
	assert.Equal(t, "host=a\nhost=c", string(content))
}

func TestMaterialize_CopiesUniqueFilesVerbatim(t *testing.T) {
	src := t.TempDir()
	path := writeFile(t, src, "bin/hook.sh", "#!/bin/sh\n")
	require.NoError(t, os.Chmod(path, 0o755))

	plan, err := PlanMerge([]string{src})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "merged")
	require.NoError(t, plan.Materialize(dest))

	info, err := os.Stat(filepath.Join(dest, "bin", "hook.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	content, err := os.ReadFile(filepath.Join(dest, "bin", "hook.sh"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(content))
}

func TestMaterialize_RecreatesDestination(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "app.conf", "fresh")

	dest := t.TempDir()
	writeFile(t, dest, "stale.conf", "left over from a previous run")

	plan, err := PlanMerge([]string{src})
	require.NoError(t, err)
	require.NoError(t, plan.Materialize(dest))

	_, err = os.Stat(filepath.Join(dest, "stale.conf"))
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(filepath.Join(dest, "app.conf"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(content))
}

func TestOverlapping_ReportsMultiSourcePathsOnly(t *testing.T) {
	srcA := t.TempDir()
	srcB := t.TempDir()
	writeFile(t, srcA, "shared.conf", "a")
	writeFile(t, srcB, "shared.conf", "b")
	writeFile(t, srcA, "unique.conf", "a")

	plan, err := PlanMerge([]string{srcA, srcB})
	require.NoError(t, err)

	overlapping := plan.Overlapping()
	assert.Len(t, overlapping, 1)
	assert.Contains(t, overlapping, "shared.conf")
}

func TestPlanMerge_IsPureNoDestinationNeeded(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "app.conf", "content")

	// Planning alone must not require, create, or touch any destination.
	plan, err := PlanMerge([]string{src})

	require.NoError(t, err)
	assert.Equal(t, []string{"app.conf"}, plan.Paths())
}

func TestPlanMerge_MissingSourceFails(t *testing.T) {
	_, err := PlanMerge([]string{filepath.Join(t.TempDir(), "does-not-exist")})

	require.Error(t, err)

	var mergeErr *MergeIOError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, "walk", mergeErr.Op)
}

func TestLayeredSources_FlatOriginIsSingleSource(t *testing.T) {
	origin := t.TempDir()
	writeFile(t, origin, "app.conf", "flat")

	sources := LayeredSources(origin, "staging", "edge")

	assert.Equal(t, []string{origin}, sources)
}

func TestLayeredSources_OverlaysInPriorityOrder(t *testing.T) {
	origin := t.TempDir()
	writeFile(t, origin, "base/app.conf", "base")
	writeFile(t, origin, "env/staging/app.conf", "staging")
	writeFile(t, origin, "inventory/edge/app.conf", "edge")

	sources := LayeredSources(origin, "staging", "edge")

	assert.Equal(t, []string{
		filepath.Join(origin, "base"),
		filepath.Join(origin, "env", "staging"),
		filepath.Join(origin, "inventory", "edge"),
	}, sources)
}

func TestLayeredSources_SkipsAbsentOverlays(t *testing.T) {
	origin := t.TempDir()
	writeFile(t, origin, "base/app.conf", "base")

	sources := LayeredSources(origin, "staging", "edge")

	assert.Equal(t, []string{filepath.Join(origin, "base")}, sources)
}
