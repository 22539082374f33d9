package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rutadirecta/boleteria/internal/config"
	"github.com/rutadirecta/boleteria/internal/repository"
	"github.com/rutadirecta/boleteria/internal/utils"
)

// Sales channels a terminal may authenticate as.  Every ticket records
// the channel that created it.
const (
	ChannelCounter = "COUNTER"
	ChannelKiosk   = "KIOSK"
	ChannelWeb     = "WEB"
)

// AuthHandler bundles dependencies for operator authentication.
type AuthHandler struct {
	Cfg       config.Config
	Operators *repository.OperatorRepo
}

func NewAuthHandler(cfg config.Config, o *repository.OperatorRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Operators: o}
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Channel  string `json:"channel"` // COUNTER | KIOSK | WEB
}

type loginResp struct {
	Operator struct {
		ID       uint64 `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"operator"`
	Channel string    `json:"channel"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Login verifies operator credentials and issues an access token bound
// to the terminal's sales channel.  Unknown usernames and wrong
// passwords get the same answer so probing cannot tell them apart.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}
	channel := strings.ToUpper(strings.TrimSpace(req.Channel))
	switch channel {
	case ChannelCounter, ChannelKiosk, ChannelWeb:
	case "":
		channel = ChannelCounter
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown channel"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	op, err := h.Operators.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return httpError(c, err)
	}
	if !utils.VerifyPassword(op.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, op.ID, op.Role, channel, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}

	var resp loginResp
	resp.Operator.ID = op.ID
	resp.Operator.Username = op.Username
	resp.Operator.Role = op.Role
	resp.Channel = channel
	resp.Token = access.Token
	resp.Expires = access.Exp
	return c.JSON(http.StatusOK, resp)
}
