package terabox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/matryer/is"

	"terabox-go/internal"
)

const (
	testSign1 = "c5df6c3f0f2b11e0a0b6c2a1d7d0f0b0e9f1a3c2"
	testSign3 = "ee2cbb1b4ba4e4ac2e5de3b0d0a2bb94"
	// base64 of RC4(testSign3) over testSign1
	testSignature = "bR13o+lUva5oQYObcE/Vs6gIoLEyj3IxreDhdrnnP/eTy2WL/pPm/w=="

	testSign2 = `function s(j,r){var a=[],p=[],o='',v=j.length;for(var q=0;q<256;q++){a[q]=j.substr(q%v,1).charCodeAt(0);p[q]=q}` +
		`for(var u=0,q=0;q<256;q++){u=(u+p[q]+a[q])%256;var t=p[q];p[q]=p[u];p[u]=t}` +
		`for(var i=0,u=0,q=0;q<r.length;q++){i=(i+1)%256;u=(u+p[i])%256;var t=p[i];p[i]=p[u];p[u]=t;` +
		`k=p[((p[i]+p[u])%256)];o+=String.fromCharCode(r.charCodeAt(q)^k)}return o}`
)

func homeInfoBody(t *testing.T, sign2 string) string {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"errno": 0,
		"data": map[string]interface{}{
			"sign1":     testSign1,
			"sign2":     sign2,
			"sign3":     testSign3,
			"timestamp": 1700000000,
		},
	})
	if err != nil {
		t.Fatalf("marshal home info: %v", err)
	}
	return string(body)
}

func TestSignTransform(t *testing.T) {
	tests := []struct {
		name string
		key  string
		data string
		want string
	}{
		{"classic_vector", "Key", "Plaintext", "u/MW6NlArwrT"},
		{"session_vector", testSign3, testSign1, testSignature},
		{"long_key", strings.Repeat("0123456789abcdef", 20), "Plaintext", "1AQhMJM6xeB9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			out, err := signTransform(tt.key, tt.data)
			is.NoErr(err)
			is.Equal(len(out), len(tt.data))
			is.Equal(encodeSignature(out), tt.want)
		})
	}
}

func TestSignTransform_EmptyKey(t *testing.T) {
	is := is.New(t)

	_, err := signTransform("", "data")
	is.True(err != nil)
}

func TestSignTransform_LongKeyUsesFirst256Bytes(t *testing.T) {
	is := is.New(t)

	key := strings.Repeat("k3y", 100)
	long, err := signTransform(key, testSign1)
	is.NoErr(err)
	truncated, err := signTransform(key[:256], testSign1)
	is.NoErr(err)
	is.Equal(long, truncated)
}

func TestEncodeSignature_Padding(t *testing.T) {
	is := is.New(t)

	is.Equal(encodeSignature([]byte("foo")), "Zm9v")
	is.Equal(encodeSignature([]byte("fo")), "Zm8=")
	is.Equal(encodeSignature([]byte("f")), "Zg==")
}

func TestIsKnownSignTransform(t *testing.T) {
	is := is.New(t)

	is.True(isKnownSignTransform(testSign2))
	is.True(!isKnownSignTransform("function s(j,r){return r.split('').reverse().join('')}"))
	is.True(!isKnownSignTransform("charCodeAt fromCharCode"))
}

func TestClient_Download(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointHomeInfo, homeInfoBody(t, testSign2))
	fake.respond(endpointDownload, `{"errno":0,"dlink":[
		{"fs_id":"42","dlink":"https://d.terabox.com/file/a"},
		{"fs_id":7,"dlink":"https://d.terabox.com/file/b"}
	]}`)

	entry := &Entry{ID: 42, Path: "/a.txt"}
	links, err := client.Download(context.Background(), ID(42), IDString("42"), entry)
	is.NoErr(err)
	is.Equal(len(links), 2)
	is.Equal(links[0], DownloadLink{ID: 42, Link: "https://d.terabox.com/file/a"})
	is.Equal(links[1], DownloadLink{ID: 7, Link: "https://d.terabox.com/file/b"})

	form := fake.form(endpointDownload)
	is.Equal(form.Get("fidlist"), "[42,42,42]")
	is.Equal(form.Get("type"), "dlink")
	is.Equal(form.Get("vip"), "2")
	is.Equal(form.Get("sign"), testSignature)
	is.Equal(form.Get("timestamp"), "1700000000")
	is.Equal(form.Get("need_speed"), "0")

	is.Equal(fake.callLog(), []string{endpointHomeInfo, endpointDownload})
}

func TestClient_DownloadEmptyLinks(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointHomeInfo, homeInfoBody(t, testSign2))
	fake.respond(endpointDownload, `{"errno":0,"dlink":[]}`)

	_, err := client.Download(context.Background(), ID(1))
	is.True(internal.IsType(err, internal.ErrProtocol))
}

func TestClient_DownloadInvalidRefs(t *testing.T) {
	tests := []struct {
		name string
		refs []FileRef
	}{
		{"none", nil},
		{"negative_id", []FileRef{ID(-1)}},
		{"non_numeric", []FileRef{IDString("abc")}},
		{"negative_string", []FileRef{IDString("-5")}},
		{"nil_ref", []FileRef{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			fake, client := newFakeAPI(t)

			_, err := client.Download(context.Background(), tt.refs...)
			is.True(internal.IsType(err, internal.ErrInvalidArgument))
			is.Equal(len(fake.callLog()), 0)
		})
	}
}

func TestClient_SignFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown_transform", `{"errno":0,"data":{"sign1":"a","sign2":"function(){return 1}","sign3":"b","timestamp":1}}`},
		{"missing_sign1", `{"errno":0,"data":{"sign2":"charCodeAt fromCharCode 256","sign3":"b","timestamp":1}}`},
		{"missing_timestamp", `{"errno":0,"data":{"sign1":"a","sign2":"charCodeAt fromCharCode 256","sign3":"b"}}`},
		{"fractional_timestamp", `{"errno":0,"data":{"sign1":"a","sign2":"charCodeAt fromCharCode 256","sign3":"b","timestamp":1.5}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			fake, client := newFakeAPI(t)
			fake.respond(endpointHomeInfo, tt.body)
			fake.respond(endpointDownload, `{"errno":0,"dlink":[{"fs_id":1,"dlink":"x"}]}`)

			_, err := client.Download(context.Background(), ID(1))
			is.True(internal.IsType(err, internal.ErrProtocol))
			is.Equal(fake.callLog(), []string{endpointHomeInfo})
		})
	}
}

func TestClient_MoveToRoot(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointFileManager, `{"errno":0,"info":[]}`)

	err := client.Move(context.Background(), map[string]string{"/docs/a.txt": "/b.txt"})
	is.NoErr(err)

	is.Equal(fake.form(endpointFileManager).Get("filelist"), `[{"dest":"","newname":"b.txt","path":"/docs/a.txt"}]`)

	query := fake.query(endpointFileManager)
	is.Equal(query.Get("opera"), "move")
	is.Equal(query.Get("async"), "0")
	is.Equal(query.Get("app_id"), DefaultAppID)
}

func TestClient_MoveBatchIsSorted(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointFileManager, `{"errno":0}`)

	err := client.Move(context.Background(), map[string]string{
		"/z.txt":      "/archive/z.txt",
		"/docs/a.txt": "/archive/renamed.txt",
	})
	is.NoErr(err)

	is.Equal(fake.form(endpointFileManager).Get("filelist"),
		`[{"dest":"/archive","newname":"renamed.txt","path":"/docs/a.txt"},{"dest":"/archive","newname":"z.txt","path":"/z.txt"}]`)
}

func TestClient_MoveInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mapping map[string]string
	}{
		{"empty", map[string]string{}},
		{"empty_source", map[string]string{"": "/a"}},
		{"root_target", map[string]string{"/a": "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			fake, client := newFakeAPI(t)

			err := client.Move(context.Background(), tt.mapping)
			is.True(internal.IsType(err, internal.ErrInvalidArgument))
			is.Equal(len(fake.callLog()), 0)
		})
	}
}

func TestClient_Delete(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointFileManager, `{"errno":0}`)

	entry := &Entry{ID: 9, Path: "/docs/b.txt"}
	err := client.Delete(context.Background(), Path("a.txt"), entry)
	is.NoErr(err)

	is.Equal(fake.form(endpointFileManager).Get("filelist"), `["/a.txt","/docs/b.txt"]`)
	is.Equal(fake.query(endpointFileManager).Get("opera"), "delete")
}

func TestClient_DeleteNoTargets(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)

	err := client.Delete(context.Background())
	is.True(internal.IsType(err, internal.ErrInvalidArgument))
	is.Equal(len(fake.callLog()), 0)
}

func TestClient_DeleteAPIError(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointFileManager, `{"errno":12,"errmsg":"batch operation failed"}`)

	err := client.Delete(context.Background(), Path("/a.txt"))
	tbErr, ok := internal.AsTeraboxError(err)
	is.True(ok)
	is.Equal(tbErr.Type, internal.ErrAPI)
	is.Equal(tbErr.Code, 12)
}

func TestClient_Stream(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:10,\nhttps://v.terabox.com/seg0.ts\n"
	fake.handle(endpointStreaming, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Write([]byte(playlist))
	})

	got, err := client.Stream(context.Background(), "/video.mp4", "")
	is.NoErr(err)
	is.Equal(got, playlist)

	form := fake.form(endpointStreaming)
	is.Equal(form.Get("path"), "/video.mp4")
	is.Equal(form.Get("type"), string(Quality480))
}

func TestClient_StreamQuality(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointStreaming, "#EXTM3U\n")

	_, err := client.Stream(context.Background(), "/video.mp4", Quality720)
	is.NoErr(err)
	is.Equal(fake.form(endpointStreaming).Get("type"), "M3U8_AUTO_720")
}

func TestClient_StreamEnvelope(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.respond(endpointStreaming, `{"errno":31341,"errmsg":"transcoding"}`)

	_, err := client.Stream(context.Background(), "/video.mp4", Quality480)
	tbErr, ok := internal.AsTeraboxError(err)
	is.True(ok)
	is.Equal(tbErr.Type, internal.ErrAPI)
	is.Equal(tbErr.Code, 31341)

	fake.respond(endpointStreaming, `{"errno":0,"note":"ok"}`)
	got, err := client.Stream(context.Background(), "/video.mp4", Quality480)
	is.NoErr(err)
	is.True(strings.Contains(got, `"note":"ok"`))
}

func TestClient_StreamRequiresPath(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)

	_, err := client.Stream(context.Background(), "", Quality480)
	is.True(internal.IsType(err, internal.ErrInvalidArgument))
	is.Equal(len(fake.callLog()), 0)
}

func TestClient_OpenLink(t *testing.T) {
	is := is.New(t)
	fake, client := newFakeAPI(t)
	fake.handle("/file/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})

	resp, err := client.OpenLink(context.Background(), client.Credentials().Host+"/file/abc?sign=x")
	is.NoErr(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	is.NoErr(err)
	is.Equal(string(body), "payload")
	is.True(strings.Contains(fake.header("/file/abc").Get("Cookie"), "ndus=test-ndus"))

	_, err = client.OpenLink(context.Background(), "")
	is.True(internal.IsType(err, internal.ErrInvalidArgument))

	_, err = client.OpenLink(context.Background(), client.Credentials().Host+"/file/missing")
	is.True(internal.IsType(err, internal.ErrFileNotFound))
}
