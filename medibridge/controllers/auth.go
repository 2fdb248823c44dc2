package controllers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"medibridge/medibridge/config"
	"medibridge/medibridge/middlewares"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/sources/psql/models"
	"medibridge/medibridge/types"
	"medibridge/medibridge/utils/logging"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type AuthController struct {
	userDAO *dao.UserDAO
	cfg     config.Config
}

func NewAuthController(userDAO *dao.UserDAO, cfg config.Config) *AuthController {
	return &AuthController{
		userDAO: userDAO,
		cfg:     cfg,
	}
}

func (c *AuthController) Signup(ctx context.Context, req types.SignupRequest) (*types.TokenResponse, error) {
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if strings.TrimSpace(req.FullName) == "" {
		return nil, fmt.Errorf("%w: fullName is required", ErrValidation)
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: role must be doctor or patient", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := c.userDAO.CreateUser(ctx, req.Email, strings.TrimSpace(req.FullName), req.Role, string(hash))
	if err != nil {
		return nil, err
	}
	logging.AppLogger.Info("user signed up", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return c.issue(user)
}

func (c *AuthController) Login(ctx context.Context, req types.LoginRequest) (*types.TokenResponse, error) {
	user, err := c.userDAO.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return c.issue(user)
}

func (c *AuthController) Me(ctx context.Context, id middlewares.Identity) (*models.User, error) {
	return c.userDAO.GetUserByID(ctx, id.UserID)
}

func (c *AuthController) issue(user *models.User) (*types.TokenResponse, error) {
	token, err := middlewares.IssueToken(c.cfg.JWTSecret, c.cfg.JWTExpiration, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &types.TokenResponse{AccessToken: token, TokenType: "bearer", User: user}, nil
}
