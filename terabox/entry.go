package terabox

import (
	"context"
	"encoding/json"
	"time"

	"terabox-go/internal"
	"terabox-go/utils"
)

// Entry is a snapshot of one remote file or directory as returned by List
// or Upload. It does not track later changes on the server.
type Entry struct {
	ID     int64
	Size   int64
	Name   string
	Path   string
	Parent string
	MD5    string

	// Timestamps in milliseconds since the Unix epoch.
	AccessMs int64
	ChangeMs int64
	ModifyMs int64
	BirthMs  int64

	Dir bool

	client *Client
}

// rawEntry is the upstream shape shared by /api/list items and the
// /api/create response. Timestamp fields are seconds.
type rawEntry struct {
	FsID           json.Number `json:"fs_id"`
	Size           json.Number `json:"size"`
	Path           string      `json:"path"`
	ServerFilename *string     `json:"server_filename"`
	Name           *string     `json:"name"`
	MD5            string      `json:"md5"`
	IsDir          json.Number `json:"isdir"`

	ServerCtime *int64 `json:"server_ctime"`
	ServerMtime *int64 `json:"server_mtime"`
	LocalCtime  *int64 `json:"local_ctime"`
	LocalMtime  *int64 `json:"local_mtime"`
	Ctime       *int64 `json:"ctime"`
	Mtime       *int64 `json:"mtime"`
}

func newEntry(c *Client, raw *rawEntry) *Entry {
	id, _ := raw.FsID.Int64()
	size, _ := raw.Size.Int64()
	isDir, _ := raw.IsDir.Int64()

	name := ""
	switch {
	case raw.ServerFilename != nil:
		name = *raw.ServerFilename
	case raw.Name != nil:
		name = *raw.Name
	}

	parent := "/"
	if raw.Path != "" {
		parent = utils.ParentDir(raw.Path)
	}

	return &Entry{
		ID:       id,
		Size:     size,
		Name:     name,
		Path:     raw.Path,
		Parent:   parent,
		MD5:      raw.MD5,
		BirthMs:  firstSeconds(raw.ServerCtime, raw.Ctime) * 1000,
		ModifyMs: firstSeconds(raw.ServerMtime, raw.Mtime) * 1000,
		ChangeMs: firstSeconds(raw.LocalCtime, raw.Ctime) * 1000,
		AccessMs: firstSeconds(raw.LocalMtime, raw.Mtime) * 1000,
		Dir:      isDir != 0,
		client:   c,
	}
}

// firstSeconds returns the first present alias, or 0 when none is.
func firstSeconds(aliases ...*int64) int64 {
	for _, v := range aliases {
		if v != nil {
			return *v
		}
	}
	return 0
}

// IsFile reports whether the entry is a regular file.
func (e *Entry) IsFile() bool { return !e.Dir }

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool { return e.Dir }

// AccessTime returns AccessMs as a time.
func (e *Entry) AccessTime() time.Time { return time.UnixMilli(e.AccessMs) }

// ChangeTime returns ChangeMs as a time.
func (e *Entry) ChangeTime() time.Time { return time.UnixMilli(e.ChangeMs) }

// ModifyTime returns ModifyMs as a time.
func (e *Entry) ModifyTime() time.Time { return time.UnixMilli(e.ModifyMs) }

// BirthTime returns BirthMs as a time.
func (e *Entry) BirthTime() time.Time { return time.UnixMilli(e.BirthMs) }

func (e *Entry) bound() (*Client, error) {
	if e == nil || e.client == nil {
		return nil, internal.NewArgumentError("entry", "not bound to a client")
	}
	return e.client, nil
}

// Download returns a direct link for this entry.
func (e *Entry) Download(ctx context.Context) (string, error) {
	c, err := e.bound()
	if err != nil {
		return "", err
	}

	links, err := c.Download(ctx, e)
	if err != nil {
		return "", err
	}
	return links[0].Link, nil
}

// Move moves or renames this entry to target.
func (e *Entry) Move(ctx context.Context, target string) error {
	c, err := e.bound()
	if err != nil {
		return err
	}
	return c.Move(ctx, map[string]string{e.Path: target})
}

// Delete removes this entry.
func (e *Entry) Delete(ctx context.Context) error {
	c, err := e.bound()
	if err != nil {
		return err
	}
	return c.Delete(ctx, e)
}

// Stream returns the HLS playlist of this entry at the given quality.
func (e *Entry) Stream(ctx context.Context, quality Quality) (string, error) {
	c, err := e.bound()
	if err != nil {
		return "", err
	}
	return c.Stream(ctx, e.Path, quality)
}
