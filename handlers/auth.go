package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Djalves424/ProjetoDSCommerce/middleware"
	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

type AuthHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAuthHandler(db *sql.DB, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		logger: logger,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	// Check if user already exists
	var existingID int
	err := h.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = $1", req.Email).Scan(&existingID)
	if err == nil {
		writeError(c, http.StatusConflict, "User already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.logger.Error("Database error",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer tx.Rollback()

	var user models.User
	err = tx.QueryRowContext(ctx,
		"INSERT INTO users (name, email, phone, birth_date, password_hash) VALUES ($1, $2, $3, NULLIF($4, '')::date, $5) RETURNING id, name, email, COALESCE(phone, ''), COALESCE(birth_date::text, ''), created_at",
		req.Name, req.Email, req.Phone, req.BirthDate, string(hashedPassword),
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.BirthDate, &user.CreatedAt)
	if err != nil {
		// A concurrent registration can slip past the existence check and
		// land on the email unique constraint instead.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			writeError(c, http.StatusConflict, "User already exists")
			return
		}
		h.logger.Error("Failed to create user",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Every registered user starts as a client.
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) SELECT $1, id FROM roles WHERE authority = $2",
		user.ID, models.RoleClient,
	); err != nil {
		h.logger.Error("Failed to assign role",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit registration",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	user.Roles = []string{models.RoleClient}

	h.logger.Info("User registered",
		zap.String("trace_id", middleware.GetTraceID(ctx)), zap.String("email", req.Email))
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	var user models.User
	err := h.db.QueryRowContext(ctx,
		"SELECT id, name, email, COALESCE(phone, ''), COALESCE(birth_date::text, ''), password_hash, created_at FROM users WHERE email = $1",
		req.Email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.BirthDate, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("Database error",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	roles, err := h.loadRoles(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to load roles",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	user.Roles = roles

	tokenString, err := middleware.GenerateToken(user.ID, user.Email, roles)
	if err != nil {
		h.logger.Error("Failed to generate token",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.logger.Info("User logged in",
		zap.String("trace_id", middleware.GetTraceID(ctx)), zap.String("email", req.Email))
	c.JSON(http.StatusOK, models.LoginResponse{
		Token: tokenString,
		User:  user,
	})
}

// GetMe returns the profile of the authenticated user.
func (h *AuthHandler) GetMe(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Missing or invalid Authorization header")
		return
	}

	ctx := c.Request.Context()

	var user models.User
	err := h.db.QueryRowContext(ctx,
		"SELECT id, name, email, COALESCE(phone, ''), COALESCE(birth_date::text, ''), created_at FROM users WHERE id = $1",
		principal.ID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.BirthDate, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(c, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to fetch user",
			zap.String("trace_id", middleware.GetTraceID(ctx)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	user.Roles = principal.Roles
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) loadRoles(ctx context.Context, userID int) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT r.authority FROM roles r JOIN user_roles ur ON ur.role_id = r.id WHERE ur.user_id = $1 ORDER BY r.authority",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
