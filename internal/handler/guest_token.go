package handler

import (
	"net/http"
	"time"

	"cartengine/internal/domain/model"
	"cartengine/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	GuestTokenCookie = "guest_token"
	GuestTokenHeader = "X-Guest-Token"
)

// cookie優先、無ければヘッダ
func readGuestToken(c echo.Context) string {
	if ck, err := c.Cookie(GuestTokenCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	return c.Request().Header.Get(GuestTokenHeader)
}

// ownerResolver はリクエストからカート所有者を決め、新しいゲストトークンなら返却する
type ownerResolver struct {
	identity     *usecase.IdentityResolver
	secureCookie bool
}

func (o ownerResolver) resolve(c echo.Context) (model.Owner, error) {
	userID, _ := getUserIDFromContext(c)

	id, err := o.identity.Resolve(usecase.IdentityInput{
		UserID:     userID,
		GuestToken: readGuestToken(c),
	})
	if err != nil {
		return model.Owner{}, err
	}

	if id.IssueGuestToken {
		c.SetCookie(&http.Cookie{
			Name:     GuestTokenCookie,
			Value:    id.GuestToken,
			Path:     "/",
			Expires:  id.ExpiresAt,
			HttpOnly: true,
			Secure:   o.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		c.Response().Header().Set(GuestTokenHeader, id.GuestToken)
	}
	return id.Owner, nil
}

func (o ownerResolver) clearGuestCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     GuestTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
