package wechat

import "fmt"

// DefaultBaseURL is the WeChat Official Account platform origin.
const DefaultBaseURL = "https://mp.weixin.qq.com"

// StartLoginURL returns the login handshake URL. Hitting it primes the
// session cookies the QR flow needs.
func StartLoginURL(base string) string {
	return base + "/cgi-bin/bizlogin?action=startlogin"
}

// QRCodeURL returns the login QR code URL. A non-zero rd is appended as a
// cache-busting parameter so a fresh code is issued.
func QRCodeURL(base string, rd int64) string {
	u := base + "/cgi-bin/loginqrcode?action=getqrcode&param=4300"
	if rd > 0 {
		u += fmt.Sprintf("&rd=%d", rd)
	}
	return u
}

// PollURL returns the scan-status polling URL.
func PollURL(base string) string {
	return base + "/cgi-bin/loginauth?action=ask&token=&lang=zh_CN&f=json&ajax=1"
}

// AppMsgURL returns the article-list endpoint URL.
func AppMsgURL(base string) string {
	return base + "/cgi-bin/appmsg"
}

// HomeURL returns the platform home page URL for a logged-in token. Used as
// a lightweight whoami probe after login.
func HomeURL(base, token string) string {
	return base + "/cgi-bin/home?t=home/index&lang=zh_CN&token=" + token
}

// SearchBizURL returns the account-search endpoint URL. A one-result search
// doubles as a cheap credential validity probe.
func SearchBizURL(base string) string {
	return base + "/cgi-bin/searchbiz"
}

// LogoutURL returns the remote session invalidation URL.
func LogoutURL(base, token string) string {
	return base + "/cgi-bin/bizlogin?action=logout&token=" + token
}
