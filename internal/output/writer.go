package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/logfields"
)

const (
	SidebarFileName = "sidebar.json"
	IndexFileName   = "index.json"
	DocsDirName     = "docs"
)

// Writer publishes an index below Dir. Files are rendered into a sibling
// staging directory which then replaces Dir, so readers see either the
// previous build or the new one.
type Writer struct {
	Dir    string
	Pretty bool
	Logger *slog.Logger
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// Write renders idx and promotes it to w.Dir.
func (w *Writer) Write(idx *index.Index) error {
	// A trailing separator would put the sibling paths inside dir.
	dir := filepath.Clean(w.Dir)
	stage := dir + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(stage, DocsDirName), 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	if err := w.writeJSON(filepath.Join(stage, SidebarFileName), NewSidebarFile(idx)); err != nil {
		_ = os.RemoveAll(stage)
		return err
	}
	if err := w.writeJSON(filepath.Join(stage, IndexFileName), NewIndexFile(idx)); err != nil {
		_ = os.RemoveAll(stage)
		return err
	}
	for e := range idx.Entries() {
		target, err := DocPath(stage, e.ID)
		if err != nil {
			_ = os.RemoveAll(stage)
			return err
		}
		if err := w.writeJSON(target, DocFile{BuildID: idx.BuildID(), Entry: e}); err != nil {
			_ = os.RemoveAll(stage)
			return err
		}
	}

	if err := w.promote(dir, stage); err != nil {
		return err
	}
	w.logger().Info("Index written", logfields.Path(dir), logfields.BuildID(idx.BuildID()), logfields.Count(idx.Len()))
	return nil
}

// promote moves the current output in dir aside, renames stage into place
// and drops the backup.
func (w *Writer) promote(dir, stage string) error {
	prev := dir + ".prev"
	if err := os.RemoveAll(prev); err != nil {
		return fmt.Errorf("remove previous backup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create output parent: %w", err)
	}
	hadPrevious := false
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
		hadPrevious = true
	}
	if err := os.Rename(stage, dir); err != nil {
		if hadPrevious {
			_ = os.Rename(prev, dir)
		}
		return fmt.Errorf("promote staging dir: %w", err)
	}
	if hadPrevious {
		if err := os.RemoveAll(prev); err != nil {
			w.logger().Warn("Failed to remove previous output", logfields.Path(prev), logfields.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeJSON(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if w.Pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // public site metadata
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DocPath returns the file of document id below root. Ids escaping root are
// rejected.
func DocPath(root, id string) (string, error) {
	rel := filepath.FromSlash(id) + ".json"
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("document id %q is not a local path", id)
	}
	return filepath.Join(root, DocsDirName, rel), nil
}
