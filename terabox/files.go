package terabox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"terabox-go/internal"
	"terabox-go/utils"
)

// Quality is a streaming profile name.
type Quality string

// Known streaming profiles. Other values are sent unchanged.
const (
	Quality480 Quality = "M3U8_AUTO_480"
	Quality720 Quality = "M3U8_AUTO_720"

	DefaultQuality = Quality480
)

// DownloadLink is a direct link for one file id.
type DownloadLink struct {
	ID   int64
	Link string
}

// Download returns direct links for refs in the order the server lists
// them, which need not match the order of refs.
func (c *Client) Download(ctx context.Context, refs ...FileRef) ([]DownloadLink, error) {
	ids, err := resolveIDs(refs)
	if err != nil {
		return nil, err
	}

	signature, err := c.sign(ctx)
	if err != nil {
		return nil, err
	}

	fidlist, _ := json.Marshal(ids)
	form := url.Values{}
	form.Set("fidlist", string(fidlist))
	form.Set("type", "dlink")
	form.Set("vip", "2")
	form.Set("sign", signature.Sign)
	form.Set("timestamp", strconv.FormatInt(signature.Timestamp, 10))
	form.Set("need_speed", "0")

	var resp struct {
		Dlink []struct {
			FsID  json.Number `json:"fs_id"`
			Dlink string      `json:"dlink"`
		} `json:"dlink"`
	}
	if err := c.call(ctx, endpointDownload, nil, form, &resp); err != nil {
		return nil, err
	}
	if len(resp.Dlink) == 0 {
		return nil, internal.NewProtocolError(endpointDownload, "server returned no download links")
	}

	links := make([]DownloadLink, 0, len(resp.Dlink))
	for _, item := range resp.Dlink {
		id, err := item.FsID.Int64()
		if err != nil {
			return nil, internal.NewProtocolError(endpointDownload, "invalid fs_id "+strconv.Quote(item.FsID.String()))
		}
		links = append(links, DownloadLink{ID: id, Link: item.Dlink})
	}

	c.logger.Debug("Resolved %d download links", len(links))
	return links, nil
}

// OpenLink starts fetching a link returned by Download with the session
// cookie attached. The caller closes the response body.
func (c *Client) OpenLink(ctx context.Context, link string) (*http.Response, error) {
	if link == "" {
		return nil, internal.NewArgumentError("link", "empty link")
	}
	return c.http.GetWithContext(ctx, link, c.headers())
}

// moveOp fields are declared in key order so the encoded filelist is stable.
type moveOp struct {
	Dest    string `json:"dest"`
	Newname string `json:"newname"`
	Path    string `json:"path"`
}

// Move moves every source path in mapping to its target path in one call.
// The server reports one status for the whole batch.
func (c *Client) Move(ctx context.Context, mapping map[string]string) error {
	if len(mapping) == 0 {
		return internal.NewArgumentError("mapping", "at least one source is required")
	}

	sources := make([]string, 0, len(mapping))
	for source := range mapping {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	ops := make([]moveOp, 0, len(mapping))
	for _, source := range sources {
		src, err := Path(source).remotePath()
		if err != nil {
			return err
		}
		dst, err := Path(mapping[source]).remotePath()
		if err != nil {
			return err
		}

		dest, newname := utils.MoveDestination(dst)
		ops = append(ops, moveOp{Dest: dest, Newname: newname, Path: src})
	}

	return c.fileManager(ctx, "move", ops)
}

// Delete removes every target in one call.
func (c *Client) Delete(ctx context.Context, targets ...PathRef) error {
	paths, err := resolvePaths(targets)
	if err != nil {
		return err
	}
	return c.fileManager(ctx, "delete", paths)
}

func (c *Client) fileManager(ctx context.Context, opera string, filelist interface{}) error {
	encoded, err := json.Marshal(filelist)
	if err != nil {
		return internal.NewArgumentError("filelist", err.Error())
	}

	extra := url.Values{"opera": {opera}, "async": {"0"}}
	form := url.Values{"filelist": {string(encoded)}}
	if err := c.call(ctx, endpointFileManager, extra, form, nil); err != nil {
		return err
	}

	c.logger.Debug("filemanager %s done", opera)
	return nil
}

// Stream returns the playlist for path at quality; an empty quality means
// DefaultQuality. The body is returned as-is unless it is a JSON envelope
// with a non-zero errno.
func (c *Client) Stream(ctx context.Context, path string, quality Quality) (string, error) {
	remote, err := Path(path).remotePath()
	if err != nil {
		return "", err
	}
	if quality == "" {
		quality = DefaultQuality
	}

	form := url.Values{"path": {remote}, "type": {string(quality)}}
	body, err := c.post(ctx, endpointStreaming, nil, form)
	if err != nil {
		return "", err
	}

	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Errno != 0 {
		return "", internal.NewAPIError(env.Errno, env.Errmsg).WithContext("endpoint", endpointStreaming)
	}
	return string(body), nil
}
