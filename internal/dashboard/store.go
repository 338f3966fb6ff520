package dashboard

import (
	"context"
	"time"

	"fluxior-backend/internal/leads"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/partners"
	"fluxior-backend/internal/realtime"
	"golang.org/x/sync/errgroup"
)

// Store is the record store as the dashboard sees it.
type Store interface {
	ListLeads(ctx context.Context) ([]models.Lead, error)
	ListPartners(ctx context.Context) ([]models.Partner, error)
	InsertLead(ctx context.Context, lead models.Lead) (models.Lead, error)
	UpdateLead(ctx context.Context, id string, patch models.LeadPatch) error
	DeleteLead(ctx context.Context, id string) error
	InsertPartner(ctx context.Context, req partners.CreateRequest) error
	UpdatePartnerRate(ctx context.Context, id string, rate float64) error
	DeletePartner(ctx context.Context, id string) error
}

// Feed opens a change subscription on the leads table.
type Feed interface {
	Subscribe(ctx context.Context) (*realtime.Subscription, error)
}

// Backend adapts the lead and partner services to Store.
type Backend struct {
	Leads    *leads.Service
	Partners *partners.Service
}

func (b Backend) ListLeads(ctx context.Context) ([]models.Lead, error) {
	return b.Leads.List(ctx, leads.ListFilter{})
}

func (b Backend) ListPartners(ctx context.Context) ([]models.Partner, error) {
	return b.Partners.List(ctx)
}

func (b Backend) InsertLead(ctx context.Context, lead models.Lead) (models.Lead, error) {
	return b.Leads.Create(ctx, lead)
}

func (b Backend) UpdateLead(ctx context.Context, id string, patch models.LeadPatch) error {
	_, err := b.Leads.Update(ctx, id, patch)
	return err
}

func (b Backend) DeleteLead(ctx context.Context, id string) error {
	return b.Leads.Delete(ctx, id)
}

func (b Backend) InsertPartner(ctx context.Context, req partners.CreateRequest) error {
	_, err := b.Partners.Create(ctx, req)
	return err
}

func (b Backend) UpdatePartnerRate(ctx context.Context, id string, rate float64) error {
	_, err := b.Partners.UpdateRate(ctx, id, rate)
	return err
}

func (b Backend) DeletePartner(ctx context.Context, id string) error {
	return b.Partners.Delete(ctx, id)
}

// fetch loads leads and partners concurrently.
func fetch(ctx context.Context, store Store) ([]models.Lead, []models.Partner, error) {
	var (
		leadList    []models.Lead
		partnerList []models.Partner
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leadList, err = store.ListLeads(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		partnerList, err = store.ListPartners(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return leadList, partnerList, nil
}

// LoadView builds a one-off view without a live session.
func LoadView(ctx context.Context, store Store, email string, cfg SortConfig, now time.Time) (View, error) {
	leadList, partnerList, err := fetch(ctx, store)
	if err != nil {
		return View{}, err
	}
	v := BuildView(leadList, partnerList, ResolveRole(email, partnerList), cfg, now)
	v.Loaded = true
	return v, nil
}
