package controllers

import (
	"net/http"

	"github.com/minhtran/veloshop-backend/api/middleware"
	"github.com/minhtran/veloshop-backend/api/responses"
	"github.com/minhtran/veloshop-backend/api/validators"
	"github.com/minhtran/veloshop-backend/internal/vouchers"
	"github.com/minhtran/veloshop-backend/pkg/logger"
)

// ListVouchers returns the authenticated user's usable vouchers.
func ListVouchers(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
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
