package index

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/navindex/internal/docs"
	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
	"git.home.luguber.info/inful/navindex/internal/markdown"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func buildExample(t *testing.T) (*sidebar.Tree, []sidebar.Entry) {
	t.Helper()
	input := []docs.Descriptor{
		{ID: "a", Title: "A", Category: "Intro", Position: 1, TOC: []markdown.Heading{{Value: "Setup", ID: "setup", Level: 2}}},
		{ID: "b", Title: "B", Category: "Intro", Position: 2},
		{ID: "c", Title: "C", Category: "Adv", Position: 1},
	}
	tree, err := sidebar.Build(slices.Values(input), []string{"Intro", "Adv"})
	require.NoError(t, err)
	return tree, sidebar.Resolve(tree, nil)
}

func TestPublishAndLookup(t *testing.T) {
	tree, entries := buildExample(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	idx, err := Publish(tree, entries, WithBuildID("build-1"), WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, "build-1", idx.BuildID())
	assert.Equal(t, at, idx.PublishedAt())
	assert.Equal(t, []string{"a", "b", "c"}, idx.IDs())
	assert.Equal(t, []string{"Intro", "Adv"}, idx.CategoryNames())
	assert.Len(t, idx.Fingerprint(), 64)

	b, err := idx.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, "a", b.Previous.ID)
	assert.Equal(t, "c", b.Next.ID)

	again, err := idx.Lookup("b")
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestLookup_NotFound(t *testing.T) {
	tree, entries := buildExample(t)
	idx, err := Publish(tree, entries)
	require.NoError(t, err)

	for range 2 {
		_, err = idx.Lookup("nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, derrors.ErrNotFound))
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "nope", nf.ID)
	}
}

func TestPublish_Mismatch(t *testing.T) {
	tree, entries := buildExample(t)

	_, err := Publish(tree, entries[:2])
	assert.ErrorIs(t, err, derrors.ErrIndexMismatch)

	extra := append(slices.Clone(entries), sidebar.Entry{ID: "z"})
	_, err = Publish(tree, extra)
	assert.ErrorIs(t, err, derrors.ErrIndexMismatch)

	swapped := []sidebar.Entry{entries[1], entries[0], entries[2]}
	_, err = Publish(tree, swapped)
	assert.ErrorIs(t, err, derrors.ErrIndexMismatch)

	_, err = Publish(nil, entries)
	assert.ErrorIs(t, err, derrors.ErrIndexMismatch)
}

func TestPublish_IsolatedFromInputs(t *testing.T) {
	tree, entries := buildExample(t)
	idx, err := Publish(tree, entries)
	require.NoError(t, err)

	entries[0].Title = "mutated"
	entries[0].TOC[0].Value = "mutated"
	tree.Root.Children[0].(*sidebar.CategoryNode).Label = "mutated"

	a, err := idx.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "A", a.Title)
	assert.Equal(t, "Setup", a.TOC[0].Value)

	a.Next.ID = "mutated"
	a2, _ := idx.Lookup("a")
	assert.Equal(t, "b", a2.Next.ID)

	for c := range idx.Categories() {
		assert.NotEqual(t, "mutated", c.Label)
		c.Label = "mutated"
	}
	for c := range idx.Categories() {
		assert.NotEqual(t, "mutated", c.Label)
	}
}

func TestCategories_Restartable(t *testing.T) {
	tree, entries := buildExample(t)
	idx, err := Publish(tree, entries)
	require.NoError(t, err)

	collect := func() []string {
		var out []string
		for c := range idx.Categories() {
			out = append(out, c.Name)
		}
		return out
	}
	assert.Equal(t, collect(), collect())

	for c := range idx.Categories() {
		assert.Equal(t, "Intro", c.Name)
		break
	}
}

func TestFingerprint_Stable(t *testing.T) {
	tree, entries := buildExample(t)
	one, err := Publish(tree, entries, WithBuildID("1"))
	require.NoError(t, err)
	two, err := Publish(tree, entries, WithBuildID("2"))
	require.NoError(t, err)
	assert.Equal(t, one.Fingerprint(), two.Fingerprint())

	entries[2].Fingerprint = "changed"
	three, err := Publish(tree, entries)
	require.NoError(t, err)
	assert.NotEqual(t, one.Fingerprint(), three.Fingerprint())
}

func TestSidebar(t *testing.T) {
	tree, entries := buildExample(t)
	idx, err := Publish(tree, entries)
	require.NoError(t, err)

	items := idx.Sidebar()
	require.Len(t, items, 2)
	assert.Equal(t, SidebarItemCategory, items[0].Type)
	assert.Equal(t, "Intro", items[0].Label)
	require.NotNil(t, items[0].Collapsed)
	assert.True(t, *items[0].Collapsed)
	require.Len(t, items[0].Items, 2)
	assert.Equal(t, SidebarItem{Type: SidebarItemLink, Label: "A", Href: "/a", DocID: "a"}, items[0].Items[0])
}

func TestConcurrentReads(t *testing.T) {
	tree, entries := buildExample(t)
	idx, err := Publish(tree, entries)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				for _, id := range []string{"a", "b", "c", "missing"} {
					_, _ = idx.Lookup(id)
				}
				for c := range idx.Categories() {
					_ = c.Label
				}
				_ = idx.Sidebar()
			}
		}()
	}
	wg.Wait()
}
