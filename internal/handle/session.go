package handle

import (
	"net/http"

	"github.com/dmorgan81/imagegen/internal/session"
)

const cookieName = "imagegen_session"

func lookupSession(r *http.Request, sessions *session.Store) (string, session.State, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return "", session.State{}, false
	}
	state, ok := sessions.Get(c.Value)
	return c.Value, state, ok
}

func ensureSession(w http.ResponseWriter, r *http.Request, sessions *session.Store) (string, session.State) {
	if id, state, ok := lookupSession(r, sessions); ok {
		return id, state
	}
	id := sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, session.State{}
}
