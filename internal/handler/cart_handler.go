package handler

import (
	"net/http"
	"strconv"

	"cartengine/internal/config"
	"cartengine/internal/domain/model"
	"cartengine/internal/middleware"
	"cartengine/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP（ゲストもログインユーザーも使える）
type CartHandler struct {
	uc    *usecase.CartUsecase
	merge *usecase.MergeUsecase
	owner ownerResolver
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, merge *usecase.MergeUsecase, identity *usecase.IdentityResolver, secureCookie bool) *CartHandler {
	return &CartHandler{
		uc:    uc,
		merge: merge,
		owner: ownerResolver{identity: identity, secureCookie: secureCookie},
	}
}

type AddCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// /cart, /cart/items/:product_id, /cart/merge を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/cart")
	g.Use(middleware.AuthJWT(cfg))

	g.GET("", h.getCart)
	g.POST("/items", h.addItem)
	g.PATCH("/items/:product_id", h.updateItem)
	g.DELETE("/items/:product_id", h.removeItem)
	g.POST("/merge", h.mergeGuestCart, middleware.RequireUser())
}

func (h *CartHandler) getCart(c echo.Context) error {
	owner, err := h.owner.resolve(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetCart(c.Request().Context(), owner)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addItem(c echo.Context) error {
	var req AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	owner, err := h.owner.resolve(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.AddItem(c.Request().Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) updateItem(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	owner, err := h.owner.resolve(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.UpdateQuantity(c.Request().Context(), owner, productID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) removeItem(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	}

	owner, err := h.owner.resolve(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.RemoveItem(c.Request().Context(), owner, productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ログイン直後に呼ぶ。ゲストトークンが無い/無効なら何もせずユーザーのカートを返す
func (h *CartHandler) mergeGuestCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	ctx := c.Request().Context()

	if guestID, ok := h.owner.identity.GuestID(readGuestToken(c)); ok {
		if err := h.merge.MergeOnLogin(ctx, userID, guestID); err != nil {
			return writeError(c, err)
		}
	}
	h.owner.clearGuestCookie(c)

	out, err := h.uc.GetCart(ctx, model.UserOwner(userID))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
