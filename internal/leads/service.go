package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fluxior-backend/internal/models"
	"fluxior-backend/internal/realtime"
	"fluxior-backend/internal/validation"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrInvalidSource = errors.New("invalid source")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidAmount = errors.New("deal amount must not be negative")
	ErrEmptyPatch    = errors.New("nothing to update")
	ErrNotFound      = errors.New("lead not found")
)

type Notifier interface {
	SendNewLeadNotification(ctx context.Context, lead models.Lead) (string, error)
}

type Service struct {
	repo      Repository
	location  *time.Location
	publisher realtime.Publisher
	notifier  Notifier
	log       *slog.Logger
}

func NewService(repo Repository, location *time.Location, publisher realtime.Publisher, notifier Notifier, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = realtime.Discard{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		location:  location,
		publisher: publisher,
		notifier:  notifier,
		log:       log,
	}
}

func (s *Service) SubmitWizard(ctx context.Context, req WizardRequest) (models.Lead, error) {
	lead := models.Lead{
		Name:        req.Name,
		Email:       req.Email,
		Company:     models.StringOrNil(req.Company),
		Phone:       models.StringOrNil(req.Phone),
		ProjectType: models.StringOrNil(req.ProjectType),
		Budget:      models.StringOrNil(req.Budget),
		Source:      models.SourceWizard,
		Status:      models.StatusNew,
		Details: models.LeadDetails{
			Wizard: &models.WizardDetails{
				Goals:             req.Goals,
				Features:          req.Features,
				DesignStyle:       req.DesignStyle,
				Deadline:          req.Deadline,
				AdditionalDetails: req.AdditionalDetails,
			},
		},
	}
	return s.Create(ctx, lead)
}

func (s *Service) SubmitContact(ctx context.Context, req ContactRequest) (models.Lead, error) {
	lead := models.Lead{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       models.StringOrNil(req.Phone),
		Company:     models.StringOrNil(req.Company),
		ProjectType: models.StringOrNil(req.ProjectType),
		Budget:      models.StringOrNil(req.Budget),
		Message:     models.StringOrNil(req.Message),
		Source:      models.SourceContactForm,
		Status:      models.StatusNew,
		Details: models.LeadDetails{
			Manual: &models.ManualDetails{Context: req.Message},
		},
	}
	return s.Create(ctx, lead)
}

// Create stores a new lead with a server-assigned id and timestamp and
// returns the stored record.
func (s *Service) Create(ctx context.Context, lead models.Lead) (models.Lead, error) {
	lead = lead.Clone()
	if lead.Source == "" {
		lead.Source = models.SourceContactForm
	}
	if lead.Status == "" {
		lead.Status = models.StatusNew
	}
	if !models.IsValidSource(lead.Source) {
		return models.Lead{}, ErrInvalidSource
	}
	if !models.IsValidStatus(lead.Status) {
		return models.Lead{}, ErrInvalidStatus
	}
	if lead.DealAmount != nil && *lead.DealAmount < 0 {
		return models.Lead{}, ErrInvalidAmount
	}

	now := time.Now().In(s.location)
	lead.ID = primitive.NewObjectID().Hex()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	lead.Name = validation.Text(lead.Name)
	lead.Email = strings.ToLower(strings.TrimSpace(lead.Email))
	lead.Phone = models.NormalizeOptional(lead.Phone)
	lead.Company = validation.OptionalText(lead.Company)
	lead.ProjectType = validation.OptionalText(lead.ProjectType)
	lead.Budget = validation.OptionalText(lead.Budget)
	lead.Message = validation.OptionalText(lead.Message)
	lead.PartnerID = models.NormalizeOptional(lead.PartnerID)
	lead.Details = sanitizeDetails(lead.Details)

	if err := s.repo.Create(ctx, lead); err != nil {
		return models.Lead{}, err
	}

	s.publish(ctx, realtime.InsertEvent(lead))
	return lead, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Lead, error) {
	filter.Status = models.LeadStatus(strings.ToLower(strings.TrimSpace(string(filter.Status))))
	filter.PartnerID = strings.TrimSpace(filter.PartnerID)
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) GetByID(ctx context.Context, id string) (models.Lead, error) {
	lead, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Lead{}, ErrNotFound
		}
		return models.Lead{}, err
	}
	return lead, nil
}

// Update applies a partial change. An empty partner id unassigns the lead.
func (s *Service) Update(ctx context.Context, id string, patch models.LeadPatch) (models.Lead, error) {
	id = strings.TrimSpace(id)
	if patch.IsEmpty() {
		return models.Lead{}, ErrEmptyPatch
	}
	patch = patch.Normalized()
	if patch.Status != nil && !models.IsValidStatus(*patch.Status) {
		return models.Lead{}, ErrInvalidStatus
	}
	if patch.DealAmount != nil && *patch.DealAmount < 0 {
		return models.Lead{}, ErrInvalidAmount
	}
	if patch.Name != nil {
		name := validation.Text(*patch.Name)
		patch.Name = &name
	}
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		patch.Email = &email
	}
	patch.Company = sanitizeClearable(patch.Company)
	patch.ProjectType = sanitizeClearable(patch.ProjectType)
	patch.Budget = sanitizeClearable(patch.Budget)
	patch.Message = sanitizeClearable(patch.Message)
	if patch.Details != nil {
		details := sanitizeDetails(*patch.Details)
		patch.Details = &details
	}

	updated, err := s.repo.Update(ctx, id, patch, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Lead{}, ErrNotFound
		}
		return models.Lead{}, err
	}

	s.publish(ctx, realtime.UpdateEvent(updated))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	s.publish(ctx, realtime.DeleteEvent(id))
	return nil
}

func (s *Service) NotifyNewLead(ctx context.Context, lead models.Lead) error {
	if s.notifier == nil {
		return nil
	}
	if _, err := s.notifier.SendNewLeadNotification(ctx, lead); err != nil {
		return fmt.Errorf("notify new lead %s: %w", lead.ID, err)
	}
	return nil
}

// publish is best effort: the write already succeeded.
func (s *Service) publish(ctx context.Context, event realtime.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("leads publish: failed",
			slog.String("event", string(event.Type)),
			slog.String("lead_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}

func sanitizeClearable(value *string) *string {
	if value == nil || *value == "" {
		return value
	}
	cleaned := validation.Text(*value)
	return &cleaned
}

func sanitizeDetails(d models.LeadDetails) models.LeadDetails {
	out := d.Clone()
	if out.Wizard != nil {
		out.Wizard.Goals = validation.Texts(out.Wizard.Goals)
		out.Wizard.Features = validation.Texts(out.Wizard.Features)
		out.Wizard.DesignStyle = validation.Text(out.Wizard.DesignStyle)
		out.Wizard.Deadline = validation.Text(out.Wizard.Deadline)
		out.Wizard.AdditionalDetails = validation.Text(out.Wizard.AdditionalDetails)
	}
	if out.Manual != nil {
		out.Manual.Context = validation.Text(out.Manual.Context)
	}
	for i := range out.Notes {
		out.Notes[i].Content = validation.Text(out.Notes[i].Content)
	}
	for i := range out.Tasks {
		out.Tasks[i].Content = validation.Text(out.Tasks[i].Content)
	}
	return out
}
