package proxy

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/AdguardTeam/gomitmproxy/proxyutil"
)

type blockedPageParameters struct {
	Hostname string
	RuleText string
}

var blockedPageTmpl = template.Must(template.New("blocked").Parse(`<!DOCTYPE html>
<html>
<head><title>Blocked by content filter</title></head>
<body>
<h1>This page has been blocked</h1>
<p>Request to <strong>{{.Hostname}}</strong> was blocked by the rule:</p>
<pre>{{.RuleText}}</pre>
</body>
</html>
`))

// buildBlockedPage renders the HTML shown in place of a blocked request.
func buildBlockedPage(session *Session, ruleText string) string {
	params := blockedPageParameters{
		Hostname: session.HTTPRequest.URL.Hostname(),
		RuleText: ruleText,
	}

	var data bytes.Buffer
	if err := blockedPageTmpl.Execute(&data, params); err != nil {
		slog.Error("proxy: error building blocked page", "err", err)
		return ""
	}

	return data.String()
}

// newBlockedResponse creates the HTTP response returned in place of a
// blocked request.
func newBlockedResponse(session *Session, ruleText string) *http.Response {
	html := buildBlockedPage(session, ruleText)
	body := strings.NewReader(html)
	res := proxyutil.NewResponse(http.StatusInternalServerError, body, session.HTTPRequest)
	res.Close = true
	res.Header.Set("Content-Type", "text/html; charset=utf-8")
	return res
}
