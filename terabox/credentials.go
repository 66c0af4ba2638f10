package terabox

import (
	"strings"

	"terabox-go/internal"
	"terabox-go/utils"
)

// Defaults applied by NewClient to every empty Credentials field except NDUS.
const (
	DefaultLang             = "en"
	DefaultAppID            = "250528"
	DefaultBrowserID        = "tlrE3CUVkBTxm0Vg_PxNfjl-6jDPXkVQHYL4bYNagiOoV03mDYb6h4uCf5M="
	DefaultHost             = "www.terabox.com"
	DefaultUploadHost       = "c-jp.terabox.com"
	DefaultBlockPlaceholder = "5910a591dd8fc18c32a8f3df4fdc1761"
)

// Credentials is the session bundle a Client authenticates with. Only NDUS is
// required. A Client copies it at construction and never changes it.
type Credentials struct {
	// NDUS is the value of the ndus session cookie.
	NDUS string
	Lang string
	// AppID is sent as the app_id query parameter.
	AppID     string
	BrowserID string
	// Host and UploadHost may carry a scheme; https is assumed otherwise.
	Host             string
	UploadHost       string
	BlockPlaceholder string
	UserAgent        string
	// JSToken is sent as the jsToken query parameter on every call.
	JSToken string
}

func (c Credentials) withDefaults() Credentials {
	setDefault(&c.Lang, DefaultLang)
	setDefault(&c.AppID, DefaultAppID)
	setDefault(&c.BrowserID, DefaultBrowserID)
	setDefault(&c.Host, DefaultHost)
	setDefault(&c.UploadHost, DefaultUploadHost)
	setDefault(&c.BlockPlaceholder, DefaultBlockPlaceholder)
	setDefault(&c.UserAgent, utils.DefaultUserAgent)
	return c
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// validate checks a defaulted bundle.
func (c Credentials) validate() error {
	if c.NDUS == "" {
		return internal.NewConfigurationError("ndus", "session token is required")
	}

	cookieFields := map[string]string{
		"ndus":      c.NDUS,
		"lang":      c.Lang,
		"browserid": c.BrowserID,
	}
	for field, value := range cookieFields {
		if strings.ContainsAny(value, "; \t\r\n") {
			return internal.NewConfigurationError(field, "cookie values cannot contain ';' or whitespace")
		}
	}

	for field, host := range map[string]string{"host": c.Host, "upload_host": c.UploadHost} {
		if err := utils.ValidateHost(field, host); err != nil {
			return internal.NewConfigurationError(field, err.Error())
		}
	}
	return nil
}

// Cookie returns the Cookie header sent with every request.
func (c Credentials) Cookie() string {
	return "browserid=" + c.BrowserID + "; lang=" + c.Lang + "; ndus=" + c.NDUS
}
