package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/internal/notification"
)

func listNotificationsHandler(inbox NotificationInbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := identity.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no authenticated session")
			return
		}

		unreadOnly := r.URL.Query().Get("unread") == "true"
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		items, err := inbox.List(r.Context(), actor.UserID, unreadOnly, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func unreadCountHandler(inbox NotificationInbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := identity.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no authenticated session")
			return
		}

		count, err := inbox.UnreadCount(r.Context(), actor.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
	}
}

func markNotificationReadHandler(inbox NotificationInbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		if err := inbox.MarkRead(r.Context(), actor.UserID, id); err != nil {
			handleNotificationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func markAllNotificationsReadHandler(inbox NotificationInbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := identity.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no authenticated session")
			return
		}

		updated, err := inbox.MarkAllRead(r.Context(), actor.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
	}
}

func deleteNotificationHandler(inbox NotificationInbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		if err := inbox.Delete(r.Context(), actor.UserID, id); err != nil {
			handleNotificationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func notificationSocketHandler(hub SocketHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := identity.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no authenticated session")
			return
		}
		hub.ServeUser(w, r, actor.UserID)
	}
}

func handleNotificationError(w http.ResponseWriter, err error) {
	if errors.Is(err, notification.ErrNotificationNotFound) {
		writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
