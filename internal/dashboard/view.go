package dashboard

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"fluxior-backend/internal/models"
)

type SortKey string

type SortDirection string

const (
	SortByDate   SortKey = "date"
	SortByAmount SortKey = "amount"

	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type SortConfig struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

func DefaultSort() SortConfig {
	return SortConfig{Key: SortByDate, Direction: SortDesc}
}

// Toggle flips the direction on the active key, or switches key in descending order.
func (c SortConfig) Toggle(key SortKey) SortConfig {
	if key != SortByAmount {
		key = SortByDate
	}
	if c.Key == key {
		if c.Direction == SortDesc {
			return SortConfig{Key: key, Direction: SortAsc}
		}
		return SortConfig{Key: key, Direction: SortDesc}
	}
	return SortConfig{Key: key, Direction: SortDesc}
}

// ParseSort reads ?sort= and ?dir= values, falling back to the default.
func ParseSort(key, dir string) SortConfig {
	cfg := DefaultSort()
	if SortKey(key) == SortByAmount {
		cfg.Key = SortByAmount
	}
	if SortDirection(dir) == SortAsc {
		cfg.Direction = SortAsc
	}
	return cfg
}

// ScopeLeads returns the leads visible to identity. The input is not modified.
func ScopeLeads(leads []models.Lead, id Identity) []models.Lead {
	out := make([]models.Lead, 0, len(leads))
	for _, l := range leads {
		if id.Sees(l) {
			out = append(out, l)
		}
	}
	return out
}

// LeadAmount is the structured deal amount, else the number leading the budget text, else 0.
func LeadAmount(l models.Lead) float64 {
	if l.DealAmount != nil {
		return *l.DealAmount
	}
	if l.Budget == nil {
		return 0
	}
	return budgetAmount(*l.Budget)
}

// budgetAmount reads the first run of digits in s. Single spaces between
// digits are thousands separators, so "1 200€" is 1200. A dot counts only
// when exactly three digits follow it: "1.200€" is 1200, "1200.50€" is 1200.
func budgetAmount(s string) float64 {
	runes := []rune(s)
	start := -1
	for i, r := range runes {
		if unicode.IsDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0
	}

	var b strings.Builder
	for i := start; i < len(runes); i++ {
		r := runes[i]
		if unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '.' {
			if digitGroup(runes[i+1:]) {
				continue
			}
			break
		}
		if isThousandsSeparator(r) && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		break
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func isThousandsSeparator(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '\u202f'
}

// digitGroup reports whether rest opens with exactly three digits.
func digitGroup(rest []rune) bool {
	if len(rest) < 3 {
		return false
	}
	for _, r := range rest[:3] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(rest) == 3 || !unicode.IsDigit(rest[3])
}

// SortLeads returns a sorted copy. Ties keep their mirror order.
func SortLeads(leads []models.Lead, cfg SortConfig) []models.Lead {
	out := append([]models.Lead(nil), leads...)
	asc := cfg.Direction == SortAsc
	sort.SliceStable(out, func(i, j int) bool {
		if cfg.Key == SortByAmount {
			a, b := LeadAmount(out[i]), LeadAmount(out[j])
			if asc {
				return a < b
			}
			return a > b
		}
		if asc {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

type Stats struct {
	TotalRevenue     float64 `json:"total_revenue"`
	PipelineValue    float64 `json:"pipeline_value"`
	ConversionRate   int     `json:"conversion_rate"`
	TotalCommissions float64 `json:"total_commissions"`
}

// ComputeStats aggregates the scoped leads. A partner view credits every
// signed lead at the viewer's own rate.
func ComputeStats(leads []models.Lead, partners []models.Partner, id Identity) Stats {
	rates := make(map[string]float64, len(partners))
	for _, p := range partners {
		rates[p.ID] = p.CommissionRate
	}

	var st Stats
	signed := 0
	for _, l := range leads {
		amount := 0.0
		if l.DealAmount != nil {
			amount = *l.DealAmount
		}
		switch {
		case l.Status == models.StatusSigned:
			signed++
			st.TotalRevenue += amount
			rate := 0.0
			if id.Role == RoleAdmin {
				if l.PartnerID != nil {
					rate = rates[*l.PartnerID]
				}
			} else {
				rate = rates[id.PartnerID]
			}
			st.TotalCommissions += amount * rate / 100
		case l.Status.IsOpen():
			st.PipelineValue += amount
		}
	}
	if len(leads) > 0 {
		st.ConversionRate = int(math.Round(float64(signed) / float64(len(leads)) * 100))
	}
	return st
}

type MonthBucket struct {
	Label   string  `json:"name"`
	Month   int     `json:"month"`
	Year    int     `json:"year"`
	Revenue float64 `json:"revenus"`
}

// MonthsShown is how many calendar months MonthlyRevenue covers, current month included.
const MonthsShown = 6

var frenchMonths = [12]string{
	"Janv.", "Févr.", "Mars", "Avr.", "Mai", "Juin",
	"Juil.", "Août", "Sept.", "Oct.", "Nov.", "Déc.",
}

// MonthlyRevenue buckets signed revenue by creation month, oldest first,
// in now's location.
func MonthlyRevenue(leads []models.Lead, now time.Time) []MonthBucket {
	loc := now.Location()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	buckets := make([]MonthBucket, 0, MonthsShown)
	index := make(map[[2]int]int, MonthsShown)
	for i := MonthsShown - 1; i >= 0; i-- {
		d := first.AddDate(0, -i, 0)
		index[[2]int{int(d.Month()), d.Year()}] = len(buckets)
		buckets = append(buckets, MonthBucket{
			Label: frenchMonths[d.Month()-1],
			Month: int(d.Month()),
			Year:  d.Year(),
		})
	}

	for _, l := range leads {
		if l.Status != models.StatusSigned || l.DealAmount == nil || *l.DealAmount == 0 {
			continue
		}
		created := l.CreatedAt.In(loc)
		if i, ok := index[[2]int{int(created.Month()), created.Year()}]; ok {
			buckets[i].Revenue += *l.DealAmount
		}
	}
	return buckets
}

type PartnerSummary struct {
	Partner     models.Partner `json:"partner"`
	Leads       int            `json:"leads"`
	Sales       float64        `json:"sales"`
	Commissions float64        `json:"commissions"`
}

// SummarizePartners totals every lead assigned to each partner, whatever its status.
func SummarizePartners(leads []models.Lead, partners []models.Partner) []PartnerSummary {
	out := make([]PartnerSummary, 0, len(partners))
	for _, p := range partners {
		sum := PartnerSummary{Partner: p}
		for _, l := range leads {
			if !l.AssignedTo(p.ID) {
				continue
			}
			sum.Leads++
			if l.DealAmount != nil {
				sum.Sales += *l.DealAmount
			}
		}
		sum.Commissions = sum.Sales * p.CommissionRate / 100
		out = append(out, sum)
	}
	return out
}

// View is one rendered snapshot of a dashboard session.
type View struct {
	Identity
	Sort          SortConfig       `json:"sort"`
	Loaded        bool             `json:"loaded"`
	Leads         []models.Lead    `json:"leads"`
	Partners      []models.Partner `json:"partners"`
	PartnerStats  []PartnerSummary `json:"partner_stats,omitempty"`
	Stats         Stats            `json:"stats"`
	Monthly       []MonthBucket    `json:"monthly"`
	Notifications []Notification   `json:"notifications"`
}

// BuildView derives everything the dashboard renders from the mirror.
func BuildView(leads []models.Lead, partners []models.Partner, id Identity, cfg SortConfig, now time.Time) View {
	scoped := SortLeads(ScopeLeads(leads, id), cfg)
	v := View{
		Identity: id,
		Sort:     cfg,
		Leads:    scoped,
		Partners: partners,
		Stats:    ComputeStats(scoped, partners, id),
		Monthly:  MonthlyRevenue(scoped, now),
	}
	if id.Role == RoleAdmin {
		v.PartnerStats = SummarizePartners(leads, partners)
	}
	return v
}
