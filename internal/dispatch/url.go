package dispatch

import (
	"net/url"
	"strings"
)

// WebSendURL builds the web client's deep link for a chat with a prefilled
// message, e.g. https://web.whatsapp.com/send?phone=2010...&text=hi.
func WebSendURL(base, phone, text string) string {
	v := url.Values{}
	v.Set("phone", phone)
	v.Set("text", text)
	return strings.TrimRight(base, "/") + "/send?" + v.Encode()
}

// NativeSendURI builds the desktop client's URI for the same deep link,
// e.g. whatsapp://send?phone=2010...&text=hi.
func NativeSendURI(scheme, phone, text string) string {
	v := url.Values{}
	v.Set("phone", phone)
	v.Set("text", text)
	return scheme + "://send?" + v.Encode()
}
