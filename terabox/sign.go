package terabox

import (
	"context"
	"crypto/rc4"
	"encoding/base64"
	"encoding/json"
	"strings"

	"terabox-go/internal"
)

// signTransformMarkers fingerprint the RC4 routine the web app ships as
// sign2. Any other routine is a protocol change this client does not know.
var signTransformMarkers = []string{"charCodeAt", "fromCharCode", "256"}

// Signature authorizes a /api/download request.
type Signature struct {
	Sign      string
	Timestamp int64
}

func (c *Client) sign(ctx context.Context) (*Signature, error) {
	var resp struct {
		Data struct {
			Sign1     string      `json:"sign1"`
			Sign2     string      `json:"sign2"`
			Sign3     string      `json:"sign3"`
			Timestamp json.Number `json:"timestamp"`
		} `json:"data"`
	}
	if err := c.call(ctx, endpointHomeInfo, nil, nil, &resp); err != nil {
		return nil, err
	}

	data := resp.Data
	for field, value := range map[string]string{
		"sign1":     data.Sign1,
		"sign2":     data.Sign2,
		"sign3":     data.Sign3,
		"timestamp": data.Timestamp.String(),
	} {
		if value == "" {
			return nil, internal.NewProtocolError(endpointHomeInfo, "missing data."+field)
		}
	}

	timestamp, err := data.Timestamp.Int64()
	if err != nil {
		return nil, internal.NewProtocolError(endpointHomeInfo, "data.timestamp is not an integer")
	}

	if !isKnownSignTransform(data.Sign2) {
		return nil, internal.NewProtocolError(endpointHomeInfo, "unrecognised sign2 transform").
			WithSuggestion("TeraBox changed its download signature scheme; a client update is required")
	}

	signed, err := signTransform(data.Sign3, data.Sign1)
	if err != nil {
		return nil, internal.NewProtocolError(endpointHomeInfo, err.Error())
	}

	return &Signature{Sign: encodeSignature(signed), Timestamp: timestamp}, nil
}

func isKnownSignTransform(sign2 string) bool {
	for _, marker := range signTransformMarkers {
		if !strings.Contains(sign2, marker) {
			return false
		}
	}
	return true
}

// maxSignKey is the number of key bytes the key schedule reads.
const maxSignKey = 256

// signTransform XORs data with the RC4 keystream for key. Bytes past the
// first 256 never reach the key schedule and are dropped.
func signTransform(key, data string) ([]byte, error) {
	k := []byte(key)
	if len(k) > maxSignKey {
		k = k[:maxSignKey]
	}

	cipher, err := rc4.NewCipher(k)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	cipher.XORKeyStream(out, []byte(data))
	return out, nil
}

// encodeSignature is standard padded base64.
func encodeSignature(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
