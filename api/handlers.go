package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kb-api/domain"
	"kb-api/state"
)

const requestBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Store, auth *Auth, logger *log.Logger) {
	e.POST("/api/login", postLogin(store, auth))
	e.POST("/api/logout", postLogout(store, auth))
	e.GET("/api/session", getSession(store, auth))
	e.POST("/api/refresh", postRefresh(store, auth))

	e.GET("/api/cards", getCards(store, auth, logger))
	e.POST("/api/cards", postCard(store, auth))
	e.PATCH("/api/cards/:id", patchCard(store, auth))
	e.DELETE("/api/cards/:id", deleteCard(store, auth))

	e.GET("/api/categories", getCategories(store, auth))
	e.POST("/api/categories", postCategory(store, auth))
	e.PUT("/api/categories/:name", putCategory(store, auth))
	e.DELETE("/api/categories/:name", deleteCategory(store, auth))

	e.GET("/api/users", getUsers(store, auth))
	e.POST("/api/users", postUser(store, auth))
	e.PATCH("/api/users/:id", patchUser(store, auth))
	e.DELETE("/api/users/:id", deleteUser(store, auth))

	e.GET("/healthz", healthz())
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

type cardsResponse struct {
	Cards []domain.Card `json:"cards"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

type usersResponse struct {
	Users []domain.User `json:"users"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func postLogin(store Store, auth *Auth) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		ok, err := store.Login(c.Request().Context(), req.Username, req.Password)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "table service request failed")
		}
		if !ok {
			return c.String(http.StatusUnauthorized, "invalid credentials")
		}
		user, _ := store.CurrentUser()
		token, err := auth.IssueToken(user.ID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to issue token")
		}
		return c.JSON(http.StatusOK, loginResponse{Token: token, User: user.Sanitized()})
	}
}

func postLogout(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		store.Logout()
		return c.NoContent(http.StatusNoContent)
	}
}

func getSession(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := sessionUser(store, auth, c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, user.Sanitized())
	}
}

func postRefresh(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		if err := store.FetchAll(c.Request().Context()); err != nil {
			return writeStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getCards(store Store, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newCardRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		user, ok := store.CurrentUser()
		if !ok || user.ID != userID {
			metrics.SetErrorStage("session")
			err = c.String(http.StatusUnauthorized, "no active session for this token")
			return err
		}

		query := c.QueryParam("query")
		category := c.QueryParam("category")
		metrics.SetQueryProvided(query != "")
		metrics.SetCategoryProvided(category != "")

		filterStart := time.Now()
		store.SetSearchQuery(query)
		store.SetSelectedCategory(category)
		cards := store.Cards()
		metrics.ObserveFilter(time.Since(filterStart))
		metrics.SetCardsReturned(len(cards))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, cardsResponse{Cards: cards})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postCard(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		var draft domain.CardDraft
		if err := decodeBody(c, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		card, err := store.CreateCard(c.Request().Context(), draft)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(http.StatusCreated, card)
	}
}

func patchCard(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		var upd domain.CardUpdate
		if err := decodeBody(c, &upd); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		card, err := store.UpdateCard(c.Request().Context(), c.Param("id"), upd)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(http.StatusOK, card)
	}
}

func deleteCard(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		if err := store.DeleteCard(c.Request().Context(), c.Param("id")); err != nil {
			return writeStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getCategories(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, categoriesResponse{Categories: store.Categories()})
	}
}

func postCategory(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		var req categoryRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := store.AddCategory(c.Request().Context(), req.Name); err != nil {
			return writeStoreError(c, err)
		}
		return c.NoContent(http.StatusCreated)
	}
}

func putCategory(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		var req categoryRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := store.RenameCategory(c.Request().Context(), c.Param("name"), req.Name); err != nil {
			return writeStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteCategory(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		if err := store.DeleteCategory(c.Request().Context(), c.Param("name")); err != nil {
			return writeStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getUsers(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := sessionUser(store, auth, c)
		if err != nil {
			return err
		}
		if !user.IsAdmin() {
			return c.String(http.StatusForbidden, state.ErrPermissionDenied.Error())
		}
		return c.JSON(http.StatusOK, usersResponse{Users: store.Users()})
	}
}

func postUser(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		var draft domain.UserDraft
		if err := decodeBody(c, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		user, err := store.AddUser(c.Request().Context(), draft)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(http.StatusCreated, user.Sanitized())
	}
}

func patchUser(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		var upd domain.UserUpdate
		if err := decodeBody(c, &upd); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		user, err := store.UpdateUser(c.Request().Context(), c.Param("id"), upd)
		if err != nil {
			return writeStoreError(c, err)
		}
		return c.JSON(http.StatusOK, user.Sanitized())
	}
}

func deleteUser(store Store, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := sessionUser(store, auth, c); err != nil {
			return err
		}
		if err := store.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
			return writeStoreError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// sessionUser authenticates the request and checks the token's subject
// against the process's active session.
func sessionUser(store Store, auth Authenticator, c echo.Context) (domain.User, error) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return domain.User{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	user, ok := store.CurrentUser()
	if !ok || user.ID != userID {
		return domain.User{}, echo.NewHTTPError(http.StatusUnauthorized, "no active session for this token")
	}
	return user, nil
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeStoreError maps state and domain errors onto HTTP statuses. Unknown
// errors are treated as upstream table service failures.
func writeStoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, state.ErrNotAuthenticated):
		return c.String(http.StatusUnauthorized, err.Error())
	case errors.Is(err, state.ErrPermissionDenied):
		return c.String(http.StatusForbidden, err.Error())
	case errors.Is(err, state.ErrCardNotFound),
		errors.Is(err, state.ErrUserNotFound),
		errors.Is(err, domain.ErrUnknownCategory):
		return c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrCategoryExists),
		errors.Is(err, state.ErrUsernameTaken):
		return c.String(http.StatusConflict, err.Error())
	case errors.Is(err, state.ErrNoFields),
		errors.Is(err, state.ErrTitleRequired),
		errors.Is(err, state.ErrCredentialsRequired),
		errors.Is(err, state.ErrInvalidRole),
		errors.Is(err, state.ErrSelfDelete),
		errors.Is(err, domain.ErrEmptyCategory),
		errors.Is(err, domain.ErrProtectedCategory),
		errors.Is(err, domain.ErrLastCategory):
		return c.String(http.StatusBadRequest, err.Error())
	default:
		c.Logger().Error(err)
		return c.String(http.StatusBadGateway, "table service request failed")
	}
}
