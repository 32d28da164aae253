package statusapi

import (
	"github.com/go-chi/chi/v5"
)

func addRoutes(r chi.Router, sess Session, hub *Hub) {
	r.Get("/health", handleHealth())

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", handleSession(sess))

		r.Get("/notices", handleNotices(sess))
		r.Post("/notices/read", handleMarkNoticesRead(sess))

		r.Get("/challenges", handleChallenges(sess))
		r.Post("/challenges/{challengeID}/select", handleSelectChallenge(sess))

		r.Get("/scoreboard", handleScoreboard(sess))

		if hub != nil {
			r.Get("/events", hub.handleStream)
		}

		r.Route("/flag/{challengeID}", func(r chi.Router) {
			r.Get("/", handleForm(sess))
			r.Post("/", handleSubmitFlag(sess))
			r.Delete("/", handleDismissForm(sess))
			r.Post("/open", handleOpenForm(sess))
			r.Post("/focus", handleFocusForm(sess))
		})
	})
}
