package proxy

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/adguard-community/cfblock/matcher"
	"github.com/adguard-community/cfblock/rule"
)

// Session carries everything the proxy handlers need to know about one
// outgoing request across the two stages of the HTTP lifetime: request
// headers received, then response headers received. MediaType/Charset
// record the response's Content-Type once a response is available.
type Session struct {
	ID string

	HTTPRequest  *http.Request
	HTTPResponse *http.Response

	ResourceType rule.ResourceType

	MediaType string
	Charset   string

	// Result is the outcome of the most recent Registry.CheckURL call
	// for this session.
	Result matcher.CheckResult
}

// NewSession builds a Session from the intercepted request, guessing its
// resource type from the request headers and URL.
func NewSession(id string, req *http.Request) *Session {
	return &Session{
		ID:           id,
		HTTPRequest:  req,
		ResourceType: assumeRequestType(req, nil),
	}
}

// RequestURL returns the full URL string of the intercepted request.
func (s *Session) RequestURL() string {
	return s.HTTPRequest.URL.String()
}

// SetResponse records res and recalculates ResourceType now that a
// Content-Type header is available.
func (s *Session) SetResponse(res *http.Response) {
	s.HTTPResponse = res
	s.ResourceType = assumeRequestType(s.HTTPRequest, res)

	contentType := res.Header.Get("Content-Type")
	mediaType, params, _ := mime.ParseMediaType(contentType)

	s.MediaType = mediaType
	if charset, ok := params["charset"]; ok {
		s.Charset = charset
	}
}

// assumeRequestType assumes the resource type from what's known at this
// point: the response's Content-Type if available, otherwise the
// request's Sec-Fetch-Dest header, then its Accept header, falling back
// to the URL's file extension.
func assumeRequestType(req *http.Request, res *http.Response) rule.ResourceType {
	if res != nil {
		contentType := res.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(contentType)
		return assumeRequestTypeFromMediaType(mediaType)
	}

	requestType := assumeRequestTypeFromFetchDest(req.Header.Get("Sec-Fetch-Dest"))
	if requestType == rule.TypeOther {
		requestType = assumeRequestTypeFromMediaType(req.Header.Get("Accept"))
	}
	if requestType == rule.TypeOther {
		requestType = assumeRequestTypeFromURL(req.URL)
	}

	return requestType
}

// assumeRequestTypeFromFetchDest maps a Sec-Fetch-Dest header value to a
// resource type. Browsers send this on every request, making it the most
// reliable signal available before a response arrives.
func assumeRequestTypeFromFetchDest(dest string) rule.ResourceType {
	switch dest {
	case "document":
		return rule.TypeDocument
	case "iframe", "frame", "fencedframe":
		return rule.TypeSubDocument
	case "script", "worker", "serviceworker", "sharedworker":
		return rule.TypeScript
	case "style":
		return rule.TypeStyleSheet
	case "image":
		return rule.TypeImage
	case "font":
		return rule.TypeFont
	case "audio", "video", "track":
		return rule.TypeMedia
	case "object", "embed":
		return rule.TypeObject
	case "websocket":
		return rule.TypeWebSocket
	case "empty":
		return rule.TypeXmlHttpRequest
	}

	return rule.TypeOther
}

// assumeRequestTypeFromMediaType maps a MIME media type (or an Accept
// header, which has the same "type/subtype" shape) to a resource type.
func assumeRequestTypeFromMediaType(mediaType string) rule.ResourceType {
	switch {
	case strings.Index(mediaType, "application/xhtml") == 0:
		return rule.TypeDocument
	case strings.Index(mediaType, "text/html") == 0:
		return rule.TypeDocument
	case strings.Index(mediaType, "text/css") == 0:
		return rule.TypeStyleSheet
	case strings.Index(mediaType, "application/javascript") == 0,
		strings.Index(mediaType, "application/x-javascript") == 0,
		strings.Index(mediaType, "text/javascript") == 0:
		return rule.TypeScript
	case strings.Index(mediaType, "image/") == 0:
		return rule.TypeImage
	case strings.Index(mediaType, "application/x-shockwave-flash") == 0:
		return rule.TypeObject
	case strings.Index(mediaType, "font/") == 0,
		strings.Index(mediaType, "application/font") == 0,
		strings.Index(mediaType, "application/vnd.ms-fontobject") == 0,
		strings.Index(mediaType, "application/x-font-") == 0:
		return rule.TypeFont
	case strings.Index(mediaType, "audio/") == 0,
		strings.Index(mediaType, "video/") == 0:
		return rule.TypeMedia
	case strings.Index(mediaType, "application/json") == 0:
		return rule.TypeXmlHttpRequest
	}

	return rule.TypeOther
}

var fileExtensions = map[string]rule.ResourceType{
	".js":     rule.TypeScript,
	".vbs":    rule.TypeScript,
	".coffee": rule.TypeScript,
	".jpg":    rule.TypeImage,
	".jpeg":   rule.TypeImage,
	".gif":    rule.TypeImage,
	".png":    rule.TypeImage,
	".tiff":   rule.TypeImage,
	".psd":    rule.TypeImage,
	".ico":    rule.TypeImage,
	".css":    rule.TypeStyleSheet,
	".less":   rule.TypeStyleSheet,
	".jar":    rule.TypeObject,
	".swf":    rule.TypeObject,
	".wav":    rule.TypeMedia,
	".mp3":    rule.TypeMedia,
	".mp4":    rule.TypeMedia,
	".avi":    rule.TypeMedia,
	".flv":    rule.TypeMedia,
	".m3u":    rule.TypeMedia,
	".webm":   rule.TypeMedia,
	".mpeg":   rule.TypeMedia,
	".mov":    rule.TypeMedia,
	".mkv":    rule.TypeMedia,
	".ttf":    rule.TypeFont,
	".otf":    rule.TypeFont,
	".woff":   rule.TypeFont,
	".woff2":  rule.TypeFont,
	".eot":    rule.TypeFont,
	".json":   rule.TypeXmlHttpRequest,
}

// assumeRequestTypeFromURL guesses the resource type from the URL's file
// extension, the last resort in assumeRequestType.
func assumeRequestTypeFromURL(u *url.URL) rule.ResourceType {
	requestType, ok := fileExtensions[path.Ext(u.Path)]
	if !ok {
		return rule.TypeOther
	}

	return requestType
}
