package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SeedPassword is the password of every seeded user.
const SeedPassword = "test"

// seedNamespace derives stable ids, so a reseeded database keeps the same
// customer and product ids.
var seedNamespace = uuid.MustParse("6f1c2a9e-3f0b-4c55-9a57-1d1f2b0c8e41")

// seedEpoch anchors fixture timestamps.
var seedEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// SeedConfig controls the generated fixture volume.
type SeedConfig struct {
	Products  int
	Customers int
	Users     int
	// Seed makes the generated data reproducible.
	Seed uint64
}

// DefaultSeedConfig mirrors the demo data set: 100 products, 3 customers and
// 200 users spread over them.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Products:  100,
		Customers: 3,
		Users:     200,
		Seed:      1,
	}
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Skipped   bool
	Customers []*Customer
	Products  int
	Users     int
}

// Seed fills an empty database with fixture data. A database that already
// holds customers is left untouched.
func Seed(ctx context.Context, db *bun.DB, cfg SeedConfig) (SeedResult, error) {
	existing, err := db.NewSelect().Model((*Customer)(nil)).Count(ctx)
	if err != nil {
		return SeedResult{}, fmt.Errorf("store: count customers: %w", err)
	}
	if existing > 0 {
		return SeedResult{Skipped: true}, nil
	}

	gen := newFixtureGenerator(cfg.Seed)
	customers := gen.customers(cfg.Customers)
	products := gen.products(cfg.Products)
	users := gen.users(cfg.Users, customers)

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(customers) > 0 {
			if _, err := tx.NewInsert().Model(&customers).Exec(ctx); err != nil {
				return fmt.Errorf("insert customers: %w", err)
			}
		}
		if len(products) > 0 {
			if _, err := tx.NewInsert().Model(&products).Exec(ctx); err != nil {
				return fmt.Errorf("insert products: %w", err)
			}
		}
		if len(users) > 0 {
			if _, err := tx.NewInsert().Model(&users).Exec(ctx); err != nil {
				return fmt.Errorf("insert users: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("store: seed: %w", err)
	}

	return SeedResult{
		Customers: customers,
		Products:  len(products),
		Users:     len(users),
	}, nil
}

var (
	surnames = []string{
		"Abbott", "Bauch", "Collins", "Dietrich", "Ernser", "Feeney", "Gorczany",
		"Hansen", "Kessler", "Lemke", "Mraz", "Nolan", "Okuneva", "Prosacco",
		"Quigley", "Runte", "Schowalter", "Torp", "Upton", "Wehner",
	}
	companySuffixes = []string{"LLC", "Ltd", "Group", "Inc", "PLC"}
	firstNames      = []string{
		"alice", "bruno", "carla", "dario", "elena", "felix", "greta", "hugo",
		"irene", "jonas", "karin", "lukas", "maya", "nora", "oscar", "paula",
	}
	modelWords = []string{
		"Nova", "Pixel", "Aero", "Zen", "Edge", "Lumen", "Orbit", "Vista",
		"Astra", "Flux", "Halo", "Prism",
	}
	modelSuffixes = []string{"", " Pro", " Note"}
	capacities    = []int{32, 64, 128}
	colors        = []string{"Black", "Grey", "White", "Red"}
	loremWords    = []string{
		"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
		"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
		"et", "dolore", "magna", "aliqua", "enim", "minim", "veniam",
	}
	emailDomains = []string{"example.com", "example.org", "example.net"}
)

type fixtureGenerator struct {
	rnd *rand.Rand
}

func newFixtureGenerator(seed uint64) *fixtureGenerator {
	return &fixtureGenerator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *fixtureGenerator) pick(words []string) string {
	return words[g.rnd.IntN(len(words))]
}

func (g *fixtureGenerator) customers(n int) []*Customer {
	out := make([]*Customer, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &Customer{
			ID:   uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("customer-%d", i))),
			Name: g.pick(surnames) + " " + g.pick(companySuffixes),
		})
	}
	return out
}

func (g *fixtureGenerator) products(n int) []*Product {
	out := make([]*Product, 0, n)
	for i := 0; i < n; i++ {
		manufacturer := g.pick(surnames)
		model := g.model()
		out = append(out, &Product{
			ID:           uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("product-%d", i))),
			Name:         fmt.Sprintf("%s %s %dGo %s", manufacturer, model, capacities[g.rnd.IntN(len(capacities))], g.pick(colors)),
			Model:        model,
			Description:  g.paragraph(),
			Manufacturer: manufacturer,
			Price:        int64(99+g.rnd.IntN(402)) * 100,
			CreatedAt:    seedEpoch.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

// model yields names like "Nova7", "Halo3c Pro" or "Edge9 Note".
func (g *fixtureGenerator) model() string {
	var b strings.Builder
	b.WriteString(g.pick(modelWords))
	b.WriteByte(byte('0' + g.rnd.IntN(10)))
	if g.rnd.IntN(2) == 1 {
		b.WriteByte(byte('a' + g.rnd.IntN(26)))
	}
	b.WriteString(g.pick(modelSuffixes))
	return b.String()
}

func (g *fixtureGenerator) paragraph() string {
	words := make([]string, 8+g.rnd.IntN(12))
	for i := range words {
		words[i] = g.pick(loremWords)
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ") + "."
}

func (g *fixtureGenerator) users(n int, customers []*Customer) []*User {
	if len(customers) == 0 {
		return nil
	}
	out := make([]*User, 0, n)
	for i := 0; i < n; i++ {
		username := fmt.Sprintf("%s.%s%d", g.pick(firstNames), strings.ToLower(g.pick(surnames)), i)
		out = append(out, &User{
			ID:         uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("user-%d", i))),
			Username:   username,
			Email:      username + "@" + g.pick(emailDomains),
			Password:   SeedPassword,
			CustomerID: customers[g.rnd.IntN(len(customers))].ID,
			CreatedAt:  seedEpoch.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}
