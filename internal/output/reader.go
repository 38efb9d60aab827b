package output

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
)

// ReadDoc loads the published entry of id from an output directory.
func ReadDoc(root, id string) (DocFile, error) {
	path, err := DocPath(root, id)
	if err != nil {
		return DocFile{}, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid document id").
			WithContext("id", id).
			Build()
	}
	var doc DocFile
	if err := readJSON(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DocFile{}, ferrors.NotFoundError("document not found").
				WithContext("id", id).
				WithContext("output", root).
				Build()
		}
		return DocFile{}, err
	}
	return doc, nil
}

// ReadIndex loads index.json from an output directory.
func ReadIndex(root string) (IndexFile, error) {
	var idx IndexFile
	if err := readJSON(filepath.Join(root, IndexFileName), &idx); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return IndexFile{}, ferrors.NotFoundError("no published index (run navindex build first)").
				WithContext("output", root).
				Build()
		}
		return IndexFile{}, err
	}
	return idx, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read published file").
			WithContext("path", path).
			Build()
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryIndex, "decode published file").
			WithContext("path", path).
			Build()
	}
	return nil
}
