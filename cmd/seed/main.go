package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"fluxior-backend/internal/config"
	"fluxior-backend/internal/db"
	"fluxior-backend/internal/handlers"
	"fluxior-backend/internal/leads"
	"fluxior-backend/internal/models"
	"fluxior-backend/internal/realtime"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedPartner struct {
	Name           string
	Email          string
	CommissionRate float64
	Role           string
}

type seedLead struct {
	Name       string
	Email      string
	Company    string
	Budget     string
	Status     models.LeadStatus
	Source     models.LeadSource
	DealAmount float64
	PartnerKey string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	partnerList := []seedPartner{
		{Name: "Sophie Laurent", Email: "sophie@partenaires.fluxior.fr", CommissionRate: 10, Role: "Apporteur d'affaires"},
		{Name: "Marc Dubois", Email: "marc@partenaires.fluxior.fr", CommissionRate: 15, Role: "Directeur commercial"},
	}

	partnerIDs := make(map[string]string, len(partnerList))
	for _, p := range partnerList {
		id, err := seedPartnerRecord(ctx, cols, p, cfg.Timezone)
		if err != nil {
			log.Fatalf("seed partner error for %s: %v", p.Email, err)
		}
		partnerIDs[p.Email] = id
	}

	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		email := envOrDefault("ADMIN_EMAIL", "admin@fluxior.fr")
		name := envOrDefault("ADMIN_NAME", "Admin")
		if err := seedUser(ctx, cols, email, name, password, cfg.Timezone); err != nil {
			log.Fatalf("seed admin error for %s: %v", email, err)
		}
	} else {
		log.Printf("seed admin: ADMIN_PASSWORD missing, skipping")
	}

	if demo, _ := strconv.ParseBool(os.Getenv("SEED_DEMO_LEADS")); demo {
		if err := seedDemoLeads(ctx, cols, partnerIDs, cfg.Timezone); err != nil {
			log.Fatalf("seed demo leads error: %v", err)
		}
	}

	log.Println("seed completed")
}

func seedPartnerRecord(ctx context.Context, cols *db.Collections, p seedPartner, loc *time.Location) (string, error) {
	filter := bson.M{"email": p.Email}
	update := bson.M{
		"$set": bson.M{
			"name":            p.Name,
			"commission_rate": p.CommissionRate,
			"role":            p.Role,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID().Hex(),
			"email":      p.Email,
			"created_at": time.Now().In(loc),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.Partner
	if err := cols.Partners.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return "", err
	}
	return stored.ID, nil
}

func seedUser(ctx context.Context, cols *db.Collections, email, name, password string, loc *time.Location) error {
	user, err := handlers.NewUser(handlers.UserCreateRequest{Email: email, Name: name, Password: password}, time.Now().In(loc))
	if err != nil {
		return err
	}
	filter := bson.M{"email": user.Email}
	update := bson.M{
		"$set": bson.M{
			"passwordHash": user.PasswordHash,
			"name":         user.Name,
			"updatedAt":    user.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":       user.ID,
			"email":     user.Email,
			"createdAt": user.CreatedAt,
		},
	}
	_, err = cols.Users.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// seedDemoLeads only fills an empty leads collection.
func seedDemoLeads(ctx context.Context, cols *db.Collections, partnerIDs map[string]string, loc *time.Location) error {
	count, err := cols.Leads.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		log.Printf("seed demo leads: %d leads present, skipping", count)
		return nil
	}

	service := leads.NewService(leads.NewRepository(cols.Leads), loc, realtime.Discard{}, nil, nil)
	demo := []seedLead{
		{Name: "Alice Martin", Email: "alice@boulangerie-martin.fr", Company: "Boulangerie Martin", Budget: "3 000€", Status: models.StatusNew, Source: models.SourceWizard},
		{Name: "Bruno Petit", Email: "bruno@petit-conseil.fr", Company: "Petit Conseil", Budget: "8 000€", Status: models.StatusNegotiation, Source: models.SourceContactForm, DealAmount: 7500, PartnerKey: "sophie@partenaires.fluxior.fr"},
		{Name: "Chloé Bernard", Email: "chloe@atelier-bernard.fr", Status: models.StatusContacted, Source: models.SourceContactForm},
		{Name: "David Moreau", Email: "david@moreau-immo.fr", Company: "Moreau Immobilier", Status: models.StatusSigned, Source: models.SourceWizard, DealAmount: 12000, PartnerKey: "marc@partenaires.fluxior.fr"},
	}

	for _, d := range demo {
		lead := models.Lead{
			Name:    d.Name,
			Email:   d.Email,
			Company: models.StringOrNil(d.Company),
			Budget:  models.StringOrNil(d.Budget),
			Status:  d.Status,
			Source:  d.Source,
		}
		if d.DealAmount > 0 {
			amount := d.DealAmount
			lead.DealAmount = &amount
		}
		if id := partnerIDs[d.PartnerKey]; id != "" {
			lead.PartnerID = &id
		}
		if _, err := service.Create(ctx, lead); err != nil {
			return err
		}
	}
	log.Printf("seed demo leads: %d created", len(demo))
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
