package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/service"
	apperrors "attendance-sync-api/pkg/errors"

	"github.com/google/uuid"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def", "abc.def"},
		{"bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestLoginHandler(t *testing.T) {
	svc := &MockAuthService{
		LoginFunc: func(_ context.Context, email, password string) (*service.LoginResult, error) {
			if email == "ops@example.com" && password == "s3cret-pass" {
				return &service.LoginResult{Token: "tok", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, apperrors.UnauthorizedError("invalid email or password")
		},
	}
	handler := NewAuthHandler(svc, testLogger())

	rr := httptest.NewRecorder()
	handler.LoginHandler(rr, createJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "ops@example.com", "password": "s3cret-pass",
	}))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	data, _ := decodeBody(rr)["data"].(map[string]interface{})
	if data["token"] != "tok" || data["tokenType"] != "Bearer" {
		t.Errorf("Unexpected login data %v", data)
	}

	rr = httptest.NewRecorder()
	handler.LoginHandler(rr, createJSONRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "ops@example.com", "password": "nope",
	}))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestSessionCheckHandler(t *testing.T) {
	var seen string
	svc := &MockAuthService{
		SessionCheckFunc: func(_ context.Context, token string) (*service.SessionInfo, error) {
			seen = token
			if token == "" {
				return nil, apperrors.UnauthorizedError("missing token")
			}
			return &service.SessionInfo{Valid: true, Email: "ops@example.com"}, nil
		},
	}
	handler := NewAuthHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/session-check", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	rr := httptest.NewRecorder()
	handler.SessionCheckHandler(rr, req)
	if rr.Code != http.StatusOK || seen != "header-token" {
		t.Errorf("Expected header token to be checked, got status %d token %q", rr.Code, seen)
	}

	rr = httptest.NewRecorder()
	handler.SessionCheckHandler(rr, createJSONRequest(http.MethodPost, "/api/v1/auth/session-check", map[string]string{"token": "body-token"}))
	if seen != "body-token" {
		t.Errorf("Expected body token, got %q", seen)
	}

	rr = httptest.NewRecorder()
	handler.SessionCheckHandler(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/session-check", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestLogoutHandler(t *testing.T) {
	handler := NewAuthHandler(&MockAuthService{}, testLogger())

	rr := httptest.NewRecorder()
	handler.LogoutHandler(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestCreateUserHandler(t *testing.T) {
	svc := &MockUserService{
		CreateUserFunc: func(_ context.Context, req service.CreateUserRequest) (*model.User, error) {
			if req.Email == "taken@example.com" {
				return nil, apperrors.New(apperrors.ErrorCodeConflict, "email already registered")
			}
			return &model.User{ID: uuid.New(), Name: req.Name, Email: req.Email, PasswordHash: "hash"}, nil
		},
	}
	handler := NewUserHandler(svc, testLogger())

	rr := httptest.NewRecorder()
	handler.CreateUserHandler(rr, createJSONRequest(http.MethodPost, "/api/v1/users", map[string]string{
		"name": "Ops", "email": "ops@example.com", "password": "s3cret-pass",
	}))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	data, _ := decodeBody(rr)["data"].(map[string]interface{})
	if _, leaked := data["passwordHash"]; leaked {
		t.Error("Password hash must not be serialized")
	}

	rr = httptest.NewRecorder()
	handler.CreateUserHandler(rr, createJSONRequest(http.MethodPost, "/api/v1/users", map[string]string{
		"name": "Ops", "email": "taken@example.com", "password": "s3cret-pass",
	}))
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, rr.Code)
	}
}

func TestListUsersHandler(t *testing.T) {
	var got repository.PaginationParams
	svc := &MockUserService{
		ListUsersFunc: func(_ context.Context, params repository.PaginationParams) (*repository.PaginatedResult[model.User], error) {
			got = params
			return &repository.PaginatedResult[model.User]{Items: []model.User{{ID: uuid.New()}}, TotalCount: 11}, nil
		},
	}
	handler := NewUserHandler(svc, testLogger())

	rr := httptest.NewRecorder()
	handler.ListUsersHandler(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users?page=2&limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if got.Offset != 5 || got.Limit != 5 {
		t.Errorf("Unexpected pagination %+v", got)
	}
	meta, _ := decodeBody(rr)["meta"].(map[string]interface{})
	if meta["totalPages"] != float64(3) {
		t.Errorf("Unexpected meta %v", meta)
	}
}

func TestUserHandler_ByID(t *testing.T) {
	id := uuid.New()
	name := "Renamed"
	svc := &MockUserService{
		UpdateUserFunc: func(_ context.Context, got uuid.UUID, req service.UpdateUserRequest) (*model.User, error) {
			if got != id || req.Name == nil || *req.Name != name {
				t.Errorf("Unexpected update %s %+v", got, req)
			}
			return &model.User{ID: id, Name: name}, nil
		},
	}
	handler := NewUserHandler(svc, testLogger())

	rr := httptest.NewRecorder()
	handler.GetUserHandler(rr, withID(httptest.NewRequest(http.MethodGet, "/", nil), id.String()))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.UpdateUserHandler(rr, withID(createJSONRequest(http.MethodPut, "/", map[string]string{"name": name}), id.String()))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.DeleteUserHandler(rr, withID(httptest.NewRequest(http.MethodDelete, "/", nil), "not-a-uuid"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}
