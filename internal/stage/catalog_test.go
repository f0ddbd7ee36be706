package stage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "clearance/pkg/domain"
)

func TestNewCatalogValidation(t *testing.T) {
	t.Run("rejects empty catalog", func(t *testing.T) {
		_, err := NewCatalog()
		require.Error(t, err)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := NewCatalog(
			Stage{ID: "payment", DisplayName: "Payment"},
			Stage{ID: "payment", DisplayName: "Payment Again"},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("rejects unknown prerequisite", func(t *testing.T) {
		_, err := NewCatalog(
			Stage{ID: "dept", DisplayName: "Department", Prerequisites: []id.StageID{"ghost"}},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown prerequisite")
	})

	t.Run("rejects self prerequisite", func(t *testing.T) {
		_, err := NewCatalog(
			Stage{ID: "dept", DisplayName: "Department", Prerequisites: []id.StageID{"dept"}},
		)
		require.Error(t, err)
	})

	t.Run("rejects prerequisite cycle", func(t *testing.T) {
		_, err := NewCatalog(
			Stage{ID: "a", DisplayName: "A", Prerequisites: []id.StageID{"b"}},
			Stage{ID: "b", DisplayName: "B", Prerequisites: []id.StageID{"a"}},
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("rejects malformed stage id", func(t *testing.T) {
		_, err := NewCatalog(Stage{ID: "Not A Slug", DisplayName: "Bad"})
		require.Error(t, err)
	})
}

func TestCatalogLookups(t *testing.T) {
	catalog, err := NewCatalog(
		Stage{ID: "payment", DisplayName: "Payment", Order: 1},
		Stage{ID: "dept", DisplayName: "Department", Order: 2, Prerequisites: []id.StageID{"payment"}},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, catalog.Len())

	st, ok := catalog.ByID("dept")
	require.True(t, ok)
	assert.Equal(t, "Department", st.DisplayName)

	_, ok = catalog.ByID("ghost")
	assert.False(t, ok)

	stages := catalog.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, id.StageID("payment"), stages[0].ID)
}

func TestChain(t *testing.T) {
	catalog, err := Chain(
		Stage{ID: "a", DisplayName: "A"},
		Stage{ID: "b", DisplayName: "B"},
		Stage{ID: "c", DisplayName: "C"},
	)
	require.NoError(t, err)

	a, _ := catalog.ByID("a")
	b, _ := catalog.ByID("b")
	c, _ := catalog.ByID("c")
	assert.Empty(t, a.Prerequisites)
	assert.Equal(t, []id.StageID{"a"}, b.Prerequisites)
	assert.Equal(t, []id.StageID{"b"}, c.Prerequisites)
}

func TestFanOut(t *testing.T) {
	catalog, err := FanOut(
		Stage{ID: "payment", DisplayName: "Payment"},
		Stage{ID: "library", DisplayName: "Library"},
		Stage{ID: "bursary", DisplayName: "Bursary"},
	)
	require.NoError(t, err)

	library, _ := catalog.ByID("library")
	bursary, _ := catalog.ByID("bursary")
	assert.Equal(t, []id.StageID{"payment"}, library.Prerequisites)
	assert.Equal(t, []id.StageID{"payment"}, bursary.Prerequisites)
}

func TestLoad(t *testing.T) {
	t.Run("parses definitions", func(t *testing.T) {
		src := `[
			{"id": "payment", "display_name": "Payment Verification", "order": 1},
			{"id": "dept", "display_name": "Department Clearance", "order": 2,
			 "prerequisites": ["payment"], "scope_required": true}
		]`
		catalog, err := Load(strings.NewReader(src))
		require.NoError(t, err)
		assert.Equal(t, 2, catalog.Len())

		dept, ok := catalog.ByID("dept")
		require.True(t, ok)
		assert.True(t, dept.ScopeRequired)
		assert.Equal(t, []id.StageID{"payment"}, dept.Prerequisites)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		_, err := Load(strings.NewReader("{not json"))
		require.Error(t, err)
	})
}

func TestDefaultCatalog(t *testing.T) {
	catalog := Default()
	require.NotNil(t, catalog)
	assert.GreaterOrEqual(t, catalog.Len(), 3)
}
