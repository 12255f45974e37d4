package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Djalves424/ProjetoDSCommerce/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func setupAuthTest(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewAuthHandler(db, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/register", handler.Register)
	router.POST("/login", handler.Login)

	return handler, mock, router
}

func TestAuthHandler_Register_Success(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("maria@example.com").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Maria", "maria@example.com", "", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "birth_date", "created_at"}).
			AddRow(1, "Maria", "maria@example.com", "", "", time.Now()))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(1, models.RoleClient).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reqBody := models.RegisterRequest{
		Name:     "Maria",
		Email:    "maria@example.com",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var user models.User
	if err := json.Unmarshal(w.Body.Bytes(), &user); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(user.Roles) != 1 || user.Roles[0] != models.RoleClient {
		t.Errorf("Expected new user to hold ROLE_CLIENT, got %v", user.Roles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("maria@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	reqBody := models.RegisterRequest{
		Name:     "Maria",
		Email:    "maria@example.com",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_ConcurrentDuplicate(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	// A second registration commits between the existence check and the
	// insert, so the unique constraint fires instead.
	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("maria@example.com").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Maria", "maria@example.com", "", "", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
	mock.ExpectRollback()

	reqBody := models.RegisterRequest{
		Name:     "Maria",
		Email:    "maria@example.com",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Register_MissingFields(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	// No database expectations - should return early before any DB calls
	reqBody := models.RegisterRequest{
		Email: "maria@example.com",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database calls were made: %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("maria@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "birth_date", "password_hash", "created_at"}).
			AddRow(1, "Maria", "maria@example.com", "", "", string(hashedPassword), time.Now()))

	mock.ExpectQuery("SELECT r.authority FROM roles").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"authority"}).AddRow(models.RoleClient))

	reqBody := models.LoginRequest{
		Email:    "maria@example.com",
		Password: "password123",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp models.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected a signed token in the response")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("maria@example.com").
		WillReturnError(sql.ErrNoRows)

	reqBody := models.LoginRequest{
		Email:    "maria@example.com",
		Password: "wrongpassword",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	handler, mock, router := setupAuthTest(t)
	defer handler.db.Close()

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("maria@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "birth_date", "password_hash", "created_at"}).
			AddRow(1, "Maria", "maria@example.com", "", "", string(hashedPassword), time.Now()))

	reqBody := models.LoginRequest{
		Email:    "maria@example.com",
		Password: "wrongpassword",
	}

	body, _ := json.Marshal(reqBody)
	req := httptest.NewRequest("POST", "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
