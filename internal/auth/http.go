package auth

import (
	"errors"
	"net/http"

	"github.com/abduss/practiceroom/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CookieSettings controls how the session cookie is written.
type CookieSettings struct {
	Name   string
	Secure bool
}

// RegisterRoutes mounts the login, logout and check-auth endpoints.
func RegisterRoutes(router gin.IRouter, service *Service, cookie CookieSettings, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	handler := &httpHandler{service: service, cookie: cookie, log: log}
	router.POST("/api/login", handler.login)
	router.POST("/api/logout", handler.logout)
	router.GET("/api/check-auth", handler.checkAuth)
}

type httpHandler struct {
	service *Service
	cookie  CookieSettings
	log     *zap.Logger
}

type loginRequest struct {
	Email   string `json:"email"`
	UID     string `json:"uid"`
	Name    string `json:"name"`
	IDToken string `json:"idToken"`
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.loginFailed(c, ErrNoData)
		return
	}

	session, err := h.service.Login(c.Request.Context(), LoginInput{
		Email:   req.Email,
		UID:     req.UID,
		Name:    req.Name,
		IDToken: req.IDToken,
	})
	if err != nil {
		h.loginFailed(c, err)
		return
	}

	h.setCookie(c, session.Token, int(h.service.SessionTTL().Seconds()))
	logger.FromContext(c, h.log).Info("user logged in", zap.String("uid", session.Identity.UID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) loginFailed(c *gin.Context, err error) {
	if mf, ok := IsMissingField(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": mf.Error()})
		return
	}
	switch {
	case errors.Is(err, ErrNoData):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": ErrNoData.Error()})
	case errors.Is(err, ErrInvalidIdentity):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Identity could not be verified"})
	default:
		logger.FromContext(c, h.log).Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Login failed"})
	}
}

func (h *httpHandler) logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *httpHandler) checkAuth(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": identity})
}

func (h *httpHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}
