package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ManuelReschke/MetricsFox/internal/pkg/env"
)

const defaultCatalogFile = "config/catalog.yml"

// EmptyEmailPolicy decides what happens to a subscription whose customer email
// could not be resolved.
type EmptyEmailPolicy string

const (
	EmptyEmailRetain EmptyEmailPolicy = "retain"
	EmptyEmailDrop   EmptyEmailPolicy = "drop"
)

func ParseEmptyEmailPolicy(raw string) (EmptyEmailPolicy, error) {
	switch EmptyEmailPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case EmptyEmailRetain:
		return EmptyEmailRetain, nil
	case EmptyEmailDrop, "":
		return EmptyEmailDrop, nil
	default:
		return "", fmt.Errorf("unknown empty email policy %q (want retain or drop)", raw)
	}
}

var validate = validator.New()

// Product is one monitored billing product.
type Product struct {
	ID                      string          `yaml:"id" validate:"required"`
	Name                    string          `yaml:"name" validate:"required"`
	RawMonthlyPrice         string          `yaml:"monthly_price" validate:"required,numeric"`
	EstimatedConversionRate float64         `yaml:"estimated_conversion_rate" validate:"gt=0,lte=100"`
	MonthlyPrice            decimal.Decimal `yaml:"-"`
}

// AnnualValue is the fixed predictive lifetime value used for the product.
func (p Product) AnnualValue() decimal.Decimal {
	return p.MonthlyPrice.Mul(decimal.NewFromInt(12))
}

type file struct {
	Products         []Product `yaml:"products" validate:"required,min=1,dive"`
	ExcludedEmails   []string  `yaml:"excluded_emails" validate:"dive,email"`
	EmptyEmailPolicy string    `yaml:"empty_email_policy"`
}

// Catalog is the static lookup table of monitored products and excluded
// account emails.
type Catalog struct {
	products         []Product
	byID             map[string]int
	excluded         map[string]struct{}
	EmptyEmailPolicy EmptyEmailPolicy
}

// New builds a catalog from already-parsed products. Product prices are taken
// from RawMonthlyPrice when MonthlyPrice is zero.
func New(products []Product, excludedEmails []string, policy EmptyEmailPolicy) (*Catalog, error) {
	if len(products) == 0 {
		return nil, errors.New("catalog needs at least one monitored product")
	}
	c := &Catalog{
		products:         make([]Product, 0, len(products)),
		byID:             make(map[string]int, len(products)),
		excluded:         make(map[string]struct{}, len(excludedEmails)),
		EmptyEmailPolicy: policy,
	}
	if c.EmptyEmailPolicy == "" {
		c.EmptyEmailPolicy = EmptyEmailDrop
	}
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" || p.Name == "" {
			return nil, errors.New("catalog product requires id and name")
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog product %s", p.ID)
		}
		if err := validate.Var(p.EstimatedConversionRate, "gt=0,lte=100"); err != nil {
			return nil, fmt.Errorf("invalid estimated_conversion_rate %v for %s: %w", p.EstimatedConversionRate, p.ID, err)
		}
		if p.MonthlyPrice.IsZero() && p.RawMonthlyPrice != "" {
			price, err := decimal.NewFromString(strings.TrimSpace(p.RawMonthlyPrice))
			if err != nil {
				return nil, fmt.Errorf("invalid monthly_price for %s: %w", p.ID, err)
			}
			p.MonthlyPrice = price
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	for _, email := range excludedEmails {
		if e := NormalizeEmail(email); e != "" {
			c.excluded[e] = struct{}{}
		}
	}
	return c, nil
}

// Load reads and validates a YAML catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	policy, err := ParseEmptyEmailPolicy(f.EmptyEmailPolicy)
	if err != nil {
		return nil, err
	}
	return New(f.Products, f.ExcludedEmails, policy)
}

// LoadFromEnv loads PRODUCT_CATALOG_FILE. EMPTY_EMAIL_POLICY overrides the
// policy written in the file.
func LoadFromEnv() (*Catalog, error) {
	c, err := Load(env.GetEnv("PRODUCT_CATALOG_FILE", defaultCatalogFile))
	if err != nil {
		return nil, err
	}
	if raw := strings.TrimSpace(env.GetEnv("EMPTY_EMAIL_POLICY", "")); raw != "" {
		policy, err := ParseEmptyEmailPolicy(raw)
		if err != nil {
			return nil, err
		}
		c.EmptyEmailPolicy = policy
	}
	return c, nil
}

// Products returns the monitored products in catalog order.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Lookup(productID string) (Product, bool) {
	i, ok := c.byID[strings.TrimSpace(productID)]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Match returns the first product id in ids that is monitored.
func (c *Catalog) Match(ids []string) (Product, bool) {
	for _, id := range ids {
		if p, ok := c.Lookup(id); ok {
			return p, true
		}
	}
	return Product{}, false
}

func (c *Catalog) IsExcluded(email string) bool {
	_, ok := c.excluded[NormalizeEmail(email)]
	return ok
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
