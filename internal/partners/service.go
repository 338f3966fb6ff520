package partners

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"fluxior-backend/internal/cache"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const cacheKey = "partners:all"

var (
	ErrInvalidRate = errors.New("commission rate must be between 0 and 100")
	ErrDuplicate   = errors.New("partner email already exists")
	ErrNotFound    = errors.New("partner not found")
)

type Service struct {
	repo     Repository
	cache    cache.Cache
	cacheTTL time.Duration
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, c cache.Cache, cacheTTL time.Duration, location *time.Location, log *slog.Logger) *Service {
	if c == nil {
		c = cache.NewNoop()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL, location: location, log: log}
}

func ValidRate(rate float64) bool {
	return rate >= 0 && rate <= 100
}

// List serves from the cache when possible. Cache errors fall through to the store.
func (s *Service) List(ctx context.Context) ([]models.Partner, error) {
	if cached, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
		var items []models.Partner
		if err := json.Unmarshal(cached, &items); err == nil {
			return items, nil
		}
	}

	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(items); err == nil {
		if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL); err != nil {
			s.log.Warn("partners list: cache set failed", slog.String("error", err.Error()))
		}
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (models.Partner, error) {
	if !ValidRate(req.CommissionRate) {
		return models.Partner{}, ErrInvalidRate
	}

	partner := models.Partner{
		ID:             primitive.NewObjectID().Hex(),
		Name:           validation.Text(req.Name),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		CommissionRate: req.CommissionRate,
		Role:           validation.Text(req.Role),
		CreatedAt:      time.Now().In(s.location),
	}

	if err := s.repo.Create(ctx, partner); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Partner{}, ErrDuplicate
		}
		return models.Partner{}, err
	}

	s.invalidate(ctx)
	return partner, nil
}

func (s *Service) UpdateRate(ctx context.Context, id string, rate float64) (models.Partner, error) {
	if !ValidRate(rate) {
		return models.Partner{}, ErrInvalidRate
	}

	updated, err := s.repo.UpdateRate(ctx, strings.TrimSpace(id), rate)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Partner{}, ErrNotFound
		}
		return models.Partner{}, err
	}

	s.invalidate(ctx)
	return updated, nil
}

// Delete leaves leads pointing at the partner untouched.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.log.Warn("partners cache: invalidate failed", slog.String("error", err.Error()))
	}
}
