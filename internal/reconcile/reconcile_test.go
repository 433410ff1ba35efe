package reconcile

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
)

func rowsOf(ids ...string) []core.FeedRow {
	rows := make([]core.FeedRow, len(ids))
	for i, id := range ids {
		rows[i] = core.FeedRow{core.ColumnID: id}
	}
	return rows
}

func setOf(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func TestDiff_Scenario(t *testing.T) {
	plan := Diff(rowsOf("A", "B", "C"), setOf("B", "C", "D"))

	assert.Equal(t, []string{"A"}, plan.InsertIDs())
	assert.Equal(t, []string{"D"}, plan.Delete)
}

func TestDiff_SkipsRowsWithoutIdentifier(t *testing.T) {
	rows := rowsOf("A", "", "  ")
	rows = append(rows, core.FeedRow{core.ColumnDescription: "no uuid column"})

	plan := Diff(rows, setOf())

	assert.Equal(t, []string{"A"}, plan.InsertIDs())
	assert.Empty(t, plan.Delete)
}

func TestDiff_RepeatedIdentifierInsertedOnce(t *testing.T) {
	rows := []core.FeedRow{
		{core.ColumnID: "A", core.ColumnDescription: "first"},
		{core.ColumnID: "A", core.ColumnDescription: "second"},
	}
	plan := Diff(rows, setOf())

	require.Len(t, plan.Insert, 1)
	assert.Equal(t, "first", plan.Insert[0][core.ColumnDescription])
}

func TestDiff_ContentChangeUnderStableIDIsIgnored(t *testing.T) {
	rows := []core.FeedRow{{core.ColumnID: "A", core.ColumnAmount: "$999"}}

	plan := Diff(rows, setOf("A"))

	assert.True(t, plan.Empty())
}

func TestDiff_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	universe := make([]string, 30)
	for i := range universe {
		universe[i] = fmt.Sprintf("id-%02d", i)
	}
	pick := func() []string {
		var out []string
		for _, id := range universe {
			if r.Intn(2) == 0 {
				out = append(out, id)
			}
		}
		return out
	}

	for i := 0; i < 200; i++ {
		extIDs := pick()
		local := setOf(pick()...)
		external := rowsOf(extIDs...)
		extSet := setOf(extIDs...)

		plan := Diff(external, local)

		deleted := setOf(plan.Delete...)
		for _, id := range plan.InsertIDs() {
			_, inExt := extSet[id]
			_, inLocal := local[id]
			_, inDel := deleted[id]
			require.True(t, inExt, "insert must come from the feed")
			require.False(t, inLocal, "insert must be missing locally")
			require.False(t, inDel, "insert and delete must be disjoint")
		}
		for _, id := range plan.Delete {
			_, inLocal := local[id]
			_, inExt := extSet[id]
			require.True(t, inLocal, "delete must come from the store")
			require.False(t, inExt, "delete must be absent from the feed")
		}

		again := Diff(external, local)
		require.Equal(t, plan, again, "diff must be deterministic")

		same := Diff(external, extSet)
		require.True(t, same.Empty(), "equal id sets produce an empty plan")
	}
}

func TestDiff_AppliedPlanConverges(t *testing.T) {
	external := rowsOf("A", "B", "C")
	local := setOf("B", "C", "D")

	plan := Diff(external, local)
	for _, id := range plan.InsertIDs() {
		local[id] = struct{}{}
	}
	for _, id := range plan.Delete {
		delete(local, id)
	}

	assert.Equal(t, setOf("A", "B", "C"), local)
	assert.True(t, Diff(external, local).Empty())
}

func TestIDs(t *testing.T) {
	got := IDs(rowsOf("A", "", "B", "A"))
	assert.Equal(t, setOf("A", "B"), got)
}
