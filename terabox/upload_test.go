package terabox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"terabox-go/internal"
	"terabox-go/utils"
)

const testBlockMD5 = "6cd3556deb0da54bca060b4c39479839"

type receivedPart struct {
	mu       sync.Mutex
	filename string
	content  string
}

func (p *receivedPart) get() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filename, p.content
}

// acceptTransfer answers superfile2 with md5 and records the uploaded part.
func acceptTransfer(t *testing.T, fake *fakeAPI, md5 string) *receivedPart {
	t.Helper()

	part := &receivedPart{}
	fake.handle(endpointSuperfile2, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()

		content, _ := io.ReadAll(file)
		part.mu.Lock()
		part.filename = header.Filename
		part.content = string(content)
		part.mu.Unlock()

		io.WriteString(w, `{"md5":"`+md5+`","request_id":1}`)
	})
	return part
}

func TestClient_Upload(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-abc","return_type":1,"block_list":[0]}`)
	part := acceptTransfer(t, fake, testBlockMD5)
	fake.respond(endpointCreate, `{"errno":0,"fs_id":99,"path":"/docs/report.txt","server_filename":"report.txt",
		"size":11,"md5":"`+testBlockMD5+`","isdir":0,"ctime":1600000000,"mtime":1600000000}`)

	modTime := time.Unix(1600000000, 0)
	entry, err := client.Upload(context.Background(), "/docs/report.txt",
		strings.NewReader("hello world"), 11, WithModTime(modTime))
	is.NoErr(err)

	is.Equal(entry.ID, int64(99))
	is.Equal(entry.Name, "report.txt")
	is.Equal(entry.Parent, "/docs")
	is.Equal(entry.Size, int64(11))
	is.True(entry.IsFile())
	is.Equal(entry.ModifyTime(), modTime)

	is.Equal(fake.callLog(), []string{endpointPrecreate, endpointSuperfile2, endpointCreate})

	precreate := fake.form(endpointPrecreate)
	is.Equal(precreate.Get("path"), "/docs/report.txt")
	is.Equal(precreate.Get("target_path"), "/docs")
	is.Equal(precreate.Get("autoinit"), "1")
	is.Equal(precreate.Get("block_list"), `["`+DefaultBlockPlaceholder+`"]`)
	is.Equal(precreate.Get("size"), "11")
	is.Equal(precreate.Get("local_mtime"), "1600000000")

	transfer := fake.query(endpointSuperfile2)
	is.Equal(transfer.Get("method"), "upload")
	is.Equal(transfer.Get("uploadid"), "N1-abc")
	is.Equal(transfer.Get("path"), "/docs/report.txt")
	is.Equal(transfer.Get("partseq"), "0")
	is.Equal(transfer.Get("uploadsign"), "0")
	is.Equal(transfer.Get("app_id"), DefaultAppID)

	filename, content := part.get()
	is.Equal(filename, "report.txt")
	is.Equal(content, "hello world")

	create := fake.form(endpointCreate)
	is.Equal(create.Get("uploadid"), "N1-abc")
	is.Equal(create.Get("block_list"), `["`+testBlockMD5+`"]`)
	is.Equal(create.Get("rtype"), "3")
	is.Equal(create.Get("isdir"), "0")
	is.Equal(create.Get("target_path"), "/docs")
	is.Equal(create.Get("local_mtime"), "1600000000")
}

func TestClient_UploadToRoot(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-root"}`)
	acceptTransfer(t, fake, testBlockMD5)
	fake.respond(endpointCreate, `{"errno":0,"fs_id":1,"path":"/top.txt","server_filename":"top.txt","size":0,"isdir":0}`)

	entry, err := client.Upload(context.Background(), "top.txt", bytes.NewReader(nil), 0)
	is.NoErr(err)
	is.Equal(entry.Parent, "/")
	is.Equal(fake.form(endpointPrecreate).Get("target_path"), "/")
}

func TestClient_UploadPrecreateFailure(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":-7,"errmsg":"invalid file name"}`)

	_, err := client.Upload(context.Background(), "/bad:name", strings.NewReader("x"), 1)
	tbErr, ok := internal.AsTeraboxError(err)
	is.True(ok)
	is.Equal(tbErr.Type, internal.ErrAPI)
	is.Equal(tbErr.Code, -7)
	is.Equal(fake.callLog(), []string{endpointPrecreate})
}

func TestClient_UploadMissingUploadID(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0}`)

	_, err := client.Upload(context.Background(), "/a.txt", strings.NewReader("x"), 1)
	is.True(internal.IsType(err, internal.ErrProtocol))
	is.Equal(fake.callLog(), []string{endpointPrecreate})
}

func TestClient_UploadTransferWithoutMD5(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-abc"}`)
	fake.respond(endpointSuperfile2, `{"error_code":31363,"error_msg":"block miss in superfile2"}`)

	_, err := client.Upload(context.Background(), "/a.txt", strings.NewReader("x"), 1)
	tbErr, ok := internal.AsTeraboxError(err)
	is.True(ok)
	is.Equal(tbErr.Type, internal.ErrUpload)
	is.Equal(tbErr.Context["uploadid"], "N1-abc")
	is.Equal(tbErr.Context["error_code"], 31363)
	is.Equal(fake.callLog(), []string{endpointPrecreate, endpointSuperfile2})
}

func TestClient_UploadTransferRejected(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-abc"}`)
	fake.handle(endpointSuperfile2, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error_code":31299,"error_msg":"file size exceeds limit","request_id":1}`)
	})

	_, err := client.Upload(context.Background(), "/a.txt", strings.NewReader("x"), 1)
	tbErr, ok := internal.AsTeraboxError(err)
	is.True(ok)
	is.Equal(tbErr.Type, internal.ErrUpload)
	is.Equal(tbErr.Context["uploadid"], "N1-abc")
	is.Equal(tbErr.Context["status"], http.StatusBadRequest)
	is.Equal(tbErr.Context["error_code"], 31299)
	is.Equal(tbErr.Context["error_msg"], "file size exceeds limit")
	is.True(internal.IsType(errors.Unwrap(err), internal.ErrServer)) // HTTP status kept as cause
	is.Equal(fake.callLog(), []string{endpointPrecreate, endpointSuperfile2})
}

func TestClient_UploadUnreachableTransferHost(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-abc"}`)

	creds := client.Credentials()
	creds.UploadHost = "http://127.0.0.1:1"
	broken, err := NewClient(creds, WithLogger(quietLogger()))
	is.NoErr(err)

	_, err = broken.Upload(context.Background(), "/a.txt", strings.NewReader("x"), 1)
	tbErr, ok := internal.AsTeraboxError(err)
	is.True(ok)
	is.Equal(tbErr.Type, internal.ErrUpload)
	is.Equal(tbErr.Context["uploadid"], "N1-abc")
	is.True(internal.IsType(errors.Unwrap(err), internal.ErrNetwork))
}

func TestClient_UploadSlowTransfer(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-slow"}`)
	fake.handle(endpointSuperfile2, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		time.Sleep(300 * time.Millisecond)
		io.WriteString(w, `{"md5":"`+testBlockMD5+`"}`)
	})
	fake.respond(endpointCreate, `{"errno":0,"fs_id":7,"path":"/slow.bin","server_filename":"slow.bin","size":4,"isdir":0}`)

	// a default client waits for the upload host however long it takes
	entry, err := client.Upload(context.Background(), "/slow.bin", strings.NewReader("data"), 4)
	is.NoErr(err)
	is.Equal(entry.ID, int64(7))

	bounded, err := NewClient(client.Credentials(), WithTimeout(100*time.Millisecond), WithLogger(quietLogger()))
	is.NoErr(err)
	_, err = bounded.Upload(context.Background(), "/slow.bin", strings.NewReader("data"), 4)
	is.True(internal.IsType(err, internal.ErrUpload))
	is.True(internal.IsType(errors.Unwrap(err), internal.ErrNetwork))
}

func TestClient_UploadTransferGarbage(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-abc"}`)
	fake.respond(endpointSuperfile2, `not json`)

	_, err := client.Upload(context.Background(), "/a.txt", strings.NewReader("x"), 1)
	is.True(internal.IsType(err, internal.ErrUpload))
	is.Equal(len(fake.callLog()), 2)
}

func TestClient_UploadInvalidArguments(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		body   io.Reader
		size   int64
	}{
		{"empty_path", "", strings.NewReader("x"), 1},
		{"root_path", "/", strings.NewReader("x"), 1},
		{"nil_body", "/a.txt", nil, 1},
		{"negative_size", "/a.txt", strings.NewReader("x"), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			fake, client := newFakeAPI(t)

			_, err := client.Upload(context.Background(), tt.remote, tt.body, tt.size)
			is.True(internal.IsType(err, internal.ErrInvalidArgument))
			is.Equal(len(fake.callLog()), 0)
		})
	}
}

func TestClient_UploadFile(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointPrecreate, `{"errno":0,"uploadid":"N1-file"}`)
	part := acceptTransfer(t, fake, testBlockMD5)
	fake.respond(endpointCreate, `{"errno":0,"fs_id":5,"path":"/backup/notes.md","server_filename":"notes.md","size":7,"isdir":0}`)

	local := filepath.Join(t.TempDir(), "notes.md")
	is.NoErr(os.WriteFile(local, []byte("# notes"), 0644))
	modTime := time.Unix(1650000000, 0)
	is.NoErr(os.Chtimes(local, modTime, modTime))

	tracker := utils.NewProgressTracker(7, true, "Uploading")
	entry, err := client.UploadFile(context.Background(), "/backup/notes.md", local, WithProgress(tracker))
	is.NoErr(err)
	is.Equal(entry.ID, int64(5))

	is.Equal(fake.form(endpointPrecreate).Get("size"), "7")
	is.Equal(fake.form(endpointPrecreate).Get("local_mtime"), "1650000000")

	_, content := part.get()
	is.Equal(content, "# notes")

	summary := tracker.Finish("")
	is.Equal(summary.TotalBytes, int64(7))
}

func TestClient_UploadFileMissing(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)

	_, err := client.UploadFile(context.Background(), "/a.txt", filepath.Join(t.TempDir(), "missing"))
	is.True(err != nil)
	_, ok := err.(*internal.ValidationError)
	is.True(ok)
	is.Equal(len(fake.callLog()), 0)
}
