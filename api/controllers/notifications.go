package controllers

import (
	"net/http"

	"github.com/minhtran/veloshop-backend/api/middleware"
	"github.com/minhtran/veloshop-backend/api/responses"
	"github.com/minhtran/veloshop-backend/api/validators"
	"github.com/minhtran/veloshop-backend/internal/notifications"
	"github.com/minhtran/veloshop-backend/pkg/logger"
)

// ListNotifications returns the authenticated user's notifications.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// MarkNotificationRead stamps a notification as read for its owner.
func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notificationID, err := parseIDParam(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.MarkRead(r.Context(), middleware.UserIDFromContext(r.Context()), notificationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}
