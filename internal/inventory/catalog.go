package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

// DepotRule maps location names containing Match to the canonical depot Name.
type DepotRule struct {
	Name  string `json:"name" validate:"required"`
	Match string `json:"match" validate:"required"`
}

// SiteRule maps location names containing Match to a site id.
type SiteRule struct {
	Match string `json:"match" validate:"required"`
	ID    int    `json:"id" validate:"gt=0"`
}

// Catalog holds the lookup tables used to classify locations and products.
// Rules are evaluated in order and the first match wins.
type Catalog struct {
	Products          []string    `json:"products" validate:"required,min=1,dive,required"`
	Depots            []DepotRule `json:"depots" validate:"required,min=1,dive"`
	Sites             []SiteRule  `json:"sites" validate:"dive"`
	DefaultSiteID     int         `json:"default_site_id" validate:"gte=0"`
	LowStockThreshold int         `json:"low_stock_threshold" validate:"gte=0"`
}

// DefaultCatalog returns the roster used by the ACE2016/ACE1831 study.
func DefaultCatalog() Catalog {
	return Catalog{
		Products: []string{"ACE2016", "ACE1831"},
		Depots: []DepotRule{
			{Name: "Acepodia TW", Match: "Acepodia"},
			{Name: "CryoGene Lab", Match: "CryoGene"},
		},
		Sites: []SiteRule{
			{Match: "SCRI", ID: 101},
			{Match: "Presbyterian", ID: 102},
			{Match: "US Oncology", ID: 103},
			{Match: "Taichung", ID: 207},
			{Match: "Norton", ID: 104},
			{Match: "Queen Mary", ID: 105},
			{Match: "Advent", ID: 106},
			{Match: "National Taiwan", ID: 107},
			{Match: "Site", ID: 100},
		},
		DefaultSiteID:     100,
		LowStockThreshold: 2,
	}
}

// LoadCatalog reads a JSON catalog from path and validates it.
func LoadCatalog(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("inventory: read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks the catalog tables.
func (c Catalog) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	seen := make(map[string]struct{}, len(c.Depots))
	for _, d := range c.Depots {
		key := fold(d.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate depot %q", ErrInvalidCatalog, d.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Tracks reports whether product is in the tracked set.
func (c Catalog) Tracks(product string) bool {
	return slices.Contains(c.Products, product)
}

// DepotNames returns the canonical depot names in catalog order.
func (c Catalog) DepotNames() []string {
	names := make([]string, 0, len(c.Depots))
	for _, d := range c.Depots {
		names = append(names, d.Name)
	}
	return names
}

// IsDepot reports whether location matches any depot rule.
func (c Catalog) IsDepot(location string) bool {
	_, ok := c.depotFor(location)
	return ok
}

// IsSite reports whether location matches a site rule and no depot rule.
func (c Catalog) IsSite(location string) bool {
	if location == "" || c.IsDepot(location) {
		return false
	}
	_, ok := c.siteRuleFor(location)
	return ok
}

// SiteID returns the id of the first matching site rule, or DefaultSiteID.
func (c Catalog) SiteID(location string) int {
	if rule, ok := c.siteRuleFor(location); ok {
		return rule.ID
	}
	return c.DefaultSiteID
}

// ClassifyTransfer derives the transfer type from the two endpoints.
func (c Catalog) ClassifyTransfer(from, to string) TransferType {
	if c.IsDepot(from) && c.IsDepot(to) {
		return TransferDepotToDepot
	}
	if c.IsSite(from) || c.IsSite(to) {
		return TransferDepotToSite
	}
	return TransferOther
}

func (c Catalog) depotFor(location string) (DepotRule, bool) {
	name := fold(location)
	for _, d := range c.Depots {
		if strings.Contains(name, fold(d.Match)) {
			return d, true
		}
	}
	return DepotRule{}, false
}

func (c Catalog) siteRuleFor(location string) (SiteRule, bool) {
	name := fold(location)
	for _, s := range c.Sites {
		if strings.Contains(name, fold(s.Match)) {
			return s, true
		}
	}
	return SiteRule{}, false
}

// fold normalises a name for caseless matching. Casers are stateful, so a
// fresh one is used per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
