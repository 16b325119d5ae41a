package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"barberbook/internal/domain"
)

// Service is one catalogue entry. Labels keyed by language; the *_c variants
// are the client-facing labels without prices.
type Service struct {
	Labels       map[string]string `json:"labels"`
	ClientLabels map[string]string `json:"client_labels"`
	Minutes      int               `json:"mins"`
	PriceUZS     int               `json:"price_uzs"`
}

// Catalog is loaded once at startup and immutable afterwards; editing the
// file requires a restart.
type Catalog struct {
	services map[string]Service
	order    []string
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var services map[string]Service
	if err := json.Unmarshal(raw, &services); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(services), nil
}

func New(services map[string]Service) *Catalog {
	order := make([]string, 0, len(services))
	for id := range services {
		order = append(order, id)
	}
	sort.Strings(order)
	return &Catalog{services: services, order: order}
}

func (c *Catalog) IDs() []string { return c.order }

func (c *Catalog) Has(id string) bool {
	_, ok := c.services[id]
	return ok
}

// Label returns the provider-facing label (with price) for a service.
func (c *Catalog) Label(id, lang string) string {
	if s, ok := c.services[id]; ok {
		if l, ok := s.Labels[lang]; ok {
			return l
		}
	}
	return id
}

// ClientLabel returns the customer-facing label, falling back to Label.
func (c *Catalog) ClientLabel(id, lang string) string {
	if s, ok := c.services[id]; ok {
		if l, ok := s.ClientLabels[lang]; ok {
			return l
		}
	}
	return c.Label(id, lang)
}

// Duration sums the selection's minutes and converts to whole slots,
// rounding up; an empty or unknown selection still takes one slot.
func (c *Catalog) Duration(ids []string) (mins, slots int) {
	for _, id := range ids {
		if s, ok := c.services[id]; ok {
			mins += s.Minutes
		}
	}
	slots = (mins + domain.SlotMinutes - 1) / domain.SlotMinutes
	if slots < 1 {
		slots = 1
	}
	return mins, slots
}

func (c *Catalog) TotalPrice(ids []string) int {
	total := 0
	for _, id := range ids {
		if s, ok := c.services[id]; ok {
			total += s.PriceUZS
		}
	}
	return total
}
