package terabox

import (
	"strconv"

	"terabox-go/internal"
	"terabox-go/utils"
)

// FileRef names a remote file by id. Implemented by ID, IDString and *Entry.
type FileRef interface {
	fileID() (int64, error)
}

// ID is a numeric fs_id.
type ID int64

func (id ID) fileID() (int64, error) {
	if id < 0 {
		return 0, internal.NewArgumentError("file id", strconv.FormatInt(int64(id), 10)+" is negative")
	}
	return int64(id), nil
}

// IDString is an fs_id in decimal text form.
type IDString string

func (s IDString) fileID() (int64, error) {
	id, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil || id < 0 {
		return 0, internal.NewArgumentError("file id", strconv.Quote(string(s))+" is not a non-negative integer")
	}
	return id, nil
}

func (e *Entry) fileID() (int64, error) {
	if e == nil {
		return 0, internal.NewArgumentError("file id", "nil entry")
	}
	return e.ID, nil
}

// PathRef names a remote file by path. Implemented by Path and *Entry.
type PathRef interface {
	remotePath() (string, error)
}

// Path is an absolute remote path.
type Path string

func (p Path) remotePath() (string, error) {
	if p == "" {
		return "", internal.NewArgumentError("path", "empty path")
	}
	cleaned := utils.CleanRemotePath(string(p))
	if cleaned == "/" {
		return "", internal.NewArgumentError("path", "the root cannot be addressed")
	}
	return cleaned, nil
}

func (e *Entry) remotePath() (string, error) {
	if e == nil || e.Path == "" {
		return "", internal.NewArgumentError("path", "entry has no path")
	}
	return e.Path, nil
}

func resolveIDs(refs []FileRef) ([]int64, error) {
	if len(refs) == 0 {
		return nil, internal.NewArgumentError("file ids", "at least one file is required")
	}

	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		if ref == nil {
			return nil, internal.NewArgumentError("file id", "nil reference")
		}
		id, err := ref.fileID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func resolvePaths(refs []PathRef) ([]string, error) {
	if len(refs) == 0 {
		return nil, internal.NewArgumentError("paths", "at least one path is required")
	}

	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == nil {
			return nil, internal.NewArgumentError("path", "nil reference")
		}
		p, err := ref.remotePath()
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
