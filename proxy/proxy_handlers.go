package proxy

import (
	"net/http"

	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/gomitmproxy"
)

// onRequest handles the outgoing HTTP requests, checking them against
// the registry before letting them through.
func (s *Server) onRequest(sess *gomitmproxy.Session) (*http.Request, *http.Response) {
	r := sess.Request()
	session := NewSession(sess.ID(), r)

	log.Debug("proxy: id=%s: saving session", session.ID)
	sess.SetProp(sessionPropKey, session)

	if r.Method == http.MethodConnect {
		return nil, nil
	}

	session.Result = s.Registry.CheckURL(r.Referer(), session.RequestURL(), session.ResourceType)

	if session.Result.IsBlocked {
		log.Debug("proxy: id=%s: blocked by %s: %s", session.ID, session.Result.Rule, session.RequestURL())

		sess.SetProp(requestBlockedKey, true)

		return nil, newBlockedResponse(session, session.Result.Rule)
	}

	return r, nil
}

// onResponse re-evaluates the request once the response's Content-Type is
// known, since a resource type guessed from an Accept header or file
// extension can turn out wrong.
func (s *Server) onResponse(sess *gomitmproxy.Session) *http.Response {
	if _, ok := sess.GetProp(requestBlockedKey); ok {
		return nil
	}

	v, ok := sess.GetProp(sessionPropKey)
	if !ok {
		log.Error("proxy: id=%s: session not found", sess.ID())
		return nil
	}

	session, ok := v.(*Session)
	if !ok {
		log.Error("proxy: id=%s: session not found (wrong type)", sess.ID())
		return nil
	}

	session.SetResponse(sess.Response())

	session.Result = s.Registry.CheckURL(session.HTTPRequest.Referer(), session.RequestURL(), session.ResourceType)
	if session.Result.IsBlocked {
		log.Debug("proxy: id=%s: blocked by %s: %s", session.ID, session.Result.Rule, session.RequestURL())
		return newBlockedResponse(session, session.Result.Rule)
	}

	return nil
}
