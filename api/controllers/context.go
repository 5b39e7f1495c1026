package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/kirana-backend/api/middleware"
	"github.com/angelmondragon/kirana-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/kirana-backend/pkg/errors"
)

func customerFromRequest(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.CustomerIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}
	return id, nil
}

func requestLocale(r *http.Request) enums.Locale {
	return middleware.LocaleFromContext(r.Context(), enums.DefaultLocale)
}
