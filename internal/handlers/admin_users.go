package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fluxior-backend/internal/auth"
	"fluxior-backend/internal/httpx"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/transport"
	"fluxior-backend/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("email already exists")
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, user models.User) error
}

type MongoUserStore struct {
	col *mongo.Collection
}

func NewUserStore(col *mongo.Collection) *MongoUserStore {
	return &MongoUserStore{col: col}
}

func (m *MongoUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := m.col.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (m *MongoUserStore) Create(ctx context.Context, user models.User) error {
	if _, err := m.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

type UserCreateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

// NewUser hashes the password and fills ids and timestamps.
func NewUser(req UserCreateRequest, now time.Time) (models.User, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:           primitive.NewObjectID().Hex(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         validation.Text(req.Name),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Server) CreateUser(w http.ResponseWriter, r *http.Request) {
	log := s.logWithRequest(r)
	var req UserCreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("users create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.Val.Struct(req); err != nil {
		log.Warn("users create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(s.Val.ValidationErrors(err)))
		return
	}
	if s.Users == nil {
		log.Warn("users create: not configured")
		transport.WriteError(w, http.StatusServiceUnavailable, "users not configured", nil)
		return
	}

	user, err := NewUser(req, time.Now().In(s.Cfg.Timezone))
	if err != nil {
		log.Error("users create: hash error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "password error", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			log.Warn("users create: duplicate", slog.String("email", user.Email))
			transport.WriteError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		log.Error("users create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("users create: ok", slog.String("user_id", user.ID))
	transport.WriteJSON(w, http.StatusCreated, user)
}
