package terabox

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"terabox-go/internal"
	"terabox-go/utils"
)

type uploadOptions struct {
	modTime  time.Time
	progress *utils.ProgressTracker
}

// UploadOption configures Upload and UploadFile.
type UploadOption func(*uploadOptions)

// WithModTime sets the local modification time reported to the server.
// Upload defaults to the current time.
func WithModTime(t time.Time) UploadOption {
	return func(o *uploadOptions) {
		o.modTime = t
	}
}

// WithProgress reports bytes read from the body to tracker.
func WithProgress(tracker *utils.ProgressTracker) UploadOption {
	return func(o *uploadOptions) {
		o.progress = tracker
	}
}

// Upload stores size bytes from body at remotePath, overwriting any
// existing file. The content is sent as a single block.
func (c *Client) Upload(ctx context.Context, remotePath string, body io.Reader, size int64, opts ...UploadOption) (*Entry, error) {
	target, err := Path(remotePath).remotePath()
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, internal.NewArgumentError("body", "nil reader")
	}
	if size < 0 {
		return nil, internal.NewArgumentError("size", strconv.FormatInt(size, 10)+" is negative")
	}

	o := &uploadOptions{modTime: time.Now()}
	for _, opt := range opts {
		opt(o)
	}
	if o.progress != nil {
		body = o.progress.WrapReader(body)
	}

	parent, name := utils.SplitRemotePath(target)
	sizeStr := strconv.FormatInt(size, 10)
	mtime := strconv.FormatInt(o.modTime.Unix(), 10)

	uploadID, err := c.precreate(ctx, target, parent, sizeStr, mtime)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Precreated %s with uploadid %s", target, uploadID)

	md5, err := c.transfer(ctx, target, name, uploadID, body)
	if err != nil {
		return nil, err
	}

	blockList, _ := json.Marshal([]string{md5})
	form := url.Values{}
	form.Set("path", target)
	form.Set("size", sizeStr)
	form.Set("uploadid", uploadID)
	form.Set("target_path", parent)
	form.Set("block_list", string(blockList))
	form.Set("local_mtime", mtime)
	form.Set("isdir", "0")
	form.Set("rtype", "3")

	var created rawEntry
	if err := c.call(ctx, endpointCreate, nil, form, &created); err != nil {
		return nil, err
	}

	c.logger.Info("Uploaded %s (%s)", target, utils.FormatBytes(size))
	return newEntry(c, &created), nil
}

func (c *Client) precreate(ctx context.Context, target, parent, size, mtime string) (string, error) {
	blockList, _ := json.Marshal([]string{c.creds.BlockPlaceholder})
	form := url.Values{}
	form.Set("path", target)
	form.Set("target_path", parent)
	form.Set("autoinit", "1")
	form.Set("block_list", string(blockList))
	form.Set("size", size)
	form.Set("local_mtime", mtime)

	var resp struct {
		UploadID string `json:"uploadid"`
	}
	if err := c.call(ctx, endpointPrecreate, nil, form, &resp); err != nil {
		return "", err
	}
	if resp.UploadID == "" {
		return "", internal.NewProtocolError(endpointPrecreate, "missing uploadid")
	}
	return resp.UploadID, nil
}

// transfer posts the content to the regional upload host and returns the
// block md5. The response carries no envelope; the md5 is the only success
// signal.
func (c *Client) transfer(ctx context.Context, target, name, uploadID string, body io.Reader) (string, error) {
	query := c.commonQuery()
	query.Set("method", "upload")
	query.Set("path", target)
	query.Set("uploadid", uploadID)
	query.Set("uploadsign", "0")
	query.Set("partseq", "0")

	rawURL := utils.BuildURL(c.creds.UploadHost, endpointSuperfile2, query)
	resp, err := c.http.PostMultipart(ctx, rawURL, "file", name, body, c.headers())
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", transferError(uploadID, err)
	}
	defer resp.Body.Close()

	var result transferResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", internal.NewUploadError("unreadable transfer response: " + err.Error()).
			WithContext("uploadid", uploadID)
	}
	if result.MD5 == "" {
		uploadErr := internal.NewUploadError("transfer returned no md5").WithContext("uploadid", uploadID)
		if result.ErrorCode != 0 {
			uploadErr.WithContext("error_code", result.ErrorCode).WithContext("error_msg", result.ErrorMsg)
		}
		return "", uploadErr
	}
	return result.MD5, nil
}

// transferResult is the superfile2 response body, on success and failure.
type transferResult struct {
	MD5       string `json:"md5"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// transferError turns a failed superfile2 exchange into an upload error. The
// HTTP status and the upload server's error_code and error_msg are kept as
// context when present.
func transferError(uploadID string, cause error) error {
	uploadErr := internal.NewUploadError("transfer failed: " + cause.Error()).
		WithContext("uploadid", uploadID).
		WithCause(cause)

	tbErr, ok := internal.AsTeraboxError(cause)
	if !ok {
		return uploadErr
	}
	uploadErr.Message = "transfer failed: " + tbErr.Message
	if tbErr.Code != 0 {
		uploadErr.WithContext("status", tbErr.Code)
	}
	if body, ok := tbErr.Context["body"].(string); ok {
		var result transferResult
		if json.Unmarshal([]byte(body), &result) == nil && result.ErrorCode != 0 {
			uploadErr.WithContext("error_code", result.ErrorCode).WithContext("error_msg", result.ErrorMsg)
		}
	}
	return uploadErr
}

// UploadFile uploads the local file at localPath to remotePath using the
// file's size and modification time.
func (c *Client) UploadFile(ctx context.Context, remotePath, localPath string, opts ...UploadOption) (*Entry, error) {
	source, err := utils.NewFileOperations().StatUploadSource(localPath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(source.Path)
	if err != nil {
		return nil, internal.NewValidationErrorWithValue("local_file", "cannot open file", localPath).
			WithContext("error", err.Error())
	}
	defer file.Close()

	opts = append([]UploadOption{WithModTime(source.ModTime)}, opts...)
	return c.Upload(ctx, remotePath, file, source.Size, opts...)
}
