package statusapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/a1ctf/gamesync/go/internal/game/challenges"
	"github.com/a1ctf/gamesync/go/internal/game/judge"
	"github.com/a1ctf/gamesync/go/internal/game/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type submitRequest struct {
	Flag string `json:"flag"`
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	}
}

func handleSession(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func handleNotices(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sess.Notices())
	}
}

func handleMarkNoticesRead(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess.MarkNoticesRead()
		writeJSON(w, http.StatusOK, sess.Notices())
	}
}

func handleChallenges(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sess.Challenges())
	}
}

func handleSelectChallenge(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := challengeID(w, r)
		if !ok {
			return
		}
		if err := sess.SelectChallenge(id); err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Challenges())
	}
}

func handleScoreboard(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := sess.Scoreboard()
		if snap == nil {
			writeError(w, http.StatusNotFound, "no scoreboard yet")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleForm(sess Session) http.HandlerFunc {
	return formHandler(sess.Form)
}

func handleOpenForm(sess Session) http.HandlerFunc {
	return formHandler(sess.OpenForm)
}

func handleFocusForm(sess Session) http.HandlerFunc {
	return formHandler(sess.FocusForm)
}

func formHandler(fn func(int64) (judge.Form, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := challengeID(w, r)
		if !ok {
			return
		}
		form, err := fn(id)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, form)
	}
}

func handleSubmitFlag(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := challengeID(w, r)
		if !ok {
			return
		}

		var req submitRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := sess.SubmitFlag(id, req.Flag); err != nil {
			writeSessionError(w, err)
			return
		}

		form, err := sess.Form(id)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, form)
	}
}

func handleDismissForm(sess Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := challengeID(w, r)
		if !ok {
			return
		}
		if err := sess.DismissForm(id); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func challengeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "challengeID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid challenge id")
		return 0, false
	}
	return id, true
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, challenges.ErrUnknownChallenge):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, judge.ErrEmptyFlag):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotLive),
		errors.Is(err, judge.ErrJudgeInFlight),
		errors.Is(err, judge.ErrStopped):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("status api request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
