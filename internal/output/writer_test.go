package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/navindex/internal/docs"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/markdown"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

func publish(t *testing.T, buildID string, input []docs.Descriptor) *index.Index {
	t.Helper()
	tree, err := sidebar.Build(slices.Values(input), []string{"Guide", "Reference"})
	require.NoError(t, err)
	idx, err := index.Publish(tree, sidebar.Resolve(tree, nil), index.WithBuildID(buildID))
	require.NoError(t, err)
	return idx
}

func decodeFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestWrite(t *testing.T) {
	idx := publish(t, "b1", []docs.Descriptor{
		{ID: "guide/intro", Title: "Intro", Category: "Guide", Position: 1,
			TOC: []markdown.Heading{{Value: "Install", ID: "install", Level: 2}}},
		{ID: "guide/usage", Title: "Usage", Category: "Guide", Position: 2},
		{ID: "api", Title: "API", Category: "Reference"},
	})
	dir := filepath.Join(t.TempDir(), "out")
	w := &Writer{Dir: dir, Pretty: true}
	require.NoError(t, w.Write(idx))

	var sb SidebarFile
	decodeFile(t, filepath.Join(dir, SidebarFileName), &sb)
	assert.Equal(t, "b1", sb.BuildID)
	items := sb.DocsSidebars[SidebarName]
	require.Len(t, items, 2)
	assert.Equal(t, index.SidebarItemCategory, items[0].Type)
	assert.Equal(t, "Guide", items[0].Label)
	assert.Equal(t, "/guide/intro", items[0].Items[0].Href)

	var ix IndexFile
	decodeFile(t, filepath.Join(dir, IndexFileName), &ix)
	assert.Equal(t, idx.Fingerprint(), ix.Fingerprint)
	assert.Equal(t, []string{"Guide", "Reference"}, ix.Categories)
	require.Len(t, ix.Entries, 3)
	assert.Equal(t, "guide/usage", ix.Entries[0].Next.ID)

	var doc DocFile
	decodeFile(t, filepath.Join(dir, DocsDirName, "guide", "intro.json"), &doc)
	assert.Equal(t, "b1", doc.BuildID)
	assert.Equal(t, "Intro", doc.Title)
	assert.Nil(t, doc.Previous)
	assert.Equal(t, []markdown.Heading{{Value: "Install", ID: "install", Level: 2}}, doc.TOC)
}

func TestWrite_ReplacesPreviousOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := &Writer{Dir: dir}

	require.NoError(t, w.Write(publish(t, "b1", []docs.Descriptor{
		{ID: "old", Title: "Old", Category: "Guide"},
	})))
	require.NoError(t, w.Write(publish(t, "b2", []docs.Descriptor{
		{ID: "new", Title: "New", Category: "Guide"},
	})))

	assert.NoFileExists(t, filepath.Join(dir, DocsDirName, "old.json"))
	assert.FileExists(t, filepath.Join(dir, DocsDirName, "new.json"))
	assert.NoDirExists(t, dir+"_stage")
	assert.NoDirExists(t, dir+".prev")

	var ix IndexFile
	decodeFile(t, filepath.Join(dir, IndexFileName), &ix)
	assert.Equal(t, "b2", ix.BuildID)
}

func TestWrite_TrailingSeparator(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "out") + string(filepath.Separator)
	w := &Writer{Dir: dir}

	for _, id := range []string{"b1", "b2"} {
		require.NoError(t, w.Write(publish(t, id, []docs.Descriptor{
			{ID: "intro", Title: "Intro", Category: "Guide"},
		})))
	}

	var ix IndexFile
	decodeFile(t, filepath.Join(parent, "out", IndexFileName), &ix)
	assert.Equal(t, "b2", ix.BuildID)
	assert.NoDirExists(t, filepath.Join(parent, "out", ".prev"))
	assert.NoDirExists(t, filepath.Join(parent, "out_stage"))
	assert.NoDirExists(t, filepath.Join(parent, "out.prev"))
}

func TestDocPath(t *testing.T) {
	p, err := DocPath("root", "a/b")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("root", "docs", "a", "b.json"), p)

	_, err = DocPath("root", "../escape")
	assert.Error(t, err)
}

func TestReadDocAndIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, (&Writer{Dir: dir}).Write(publish(t, "b1", []docs.Descriptor{
		{ID: "guide/intro", Title: "Intro", Category: "Guide", Position: 1},
		{ID: "guide/usage", Title: "Usage", Category: "Guide", Position: 2},
	})))

	doc, err := ReadDoc(dir, "guide/usage")
	require.NoError(t, err)
	assert.Equal(t, "Usage", doc.Title)
	assert.Equal(t, "guide/intro", doc.Previous.ID)

	_, err = ReadDoc(dir, "nope")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	_, err = ReadDoc(dir, "../etc/passwd")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	ix, err := ReadIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, "b1", ix.BuildID)

	_, err = ReadIndex(t.TempDir())
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}
