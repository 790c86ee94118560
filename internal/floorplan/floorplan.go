package floorplan

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/jortega-dev/comandero/internal/table"
)

// Plan is the establishment's floor layout. Tables are created by
// configuration, never by order flow; the plan is upserted into the registry
// at startup.
type Plan struct {
	Tables []Entry `yaml:"tables"`
}

type Entry struct {
	ID       string `yaml:"id"`
	Number   int    `yaml:"number"`
	Capacity int    `yaml:"capacity"`
	Zone     string `yaml:"zone"`
}

func Load(path string) (*Plan, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("floorplan: failed to open %s: %w", path, err)
	}
	defer file.Close()

	var plan Plan
	if err := yaml.NewDecoder(file).Decode(&plan); err != nil {
		return nil, fmt.Errorf("floorplan: invalid plan file %s: %w", path, err)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Plan) Validate() error {
	type zoneNumber struct {
		zone   string
		number int
	}
	seen := make(map[string]bool, len(p.Tables))
	// Numbers repeat across zones; only a clash within one zone is an
	// error, matching the registry's UNIQUE (zone, number) constraint.
	numbers := make(map[zoneNumber]bool, len(p.Tables))
	for _, e := range p.Tables {
		if e.ID == "" {
			return fmt.Errorf("floorplan: table with number %d has no id", e.Number)
		}
		if seen[e.ID] {
			return fmt.Errorf("floorplan: duplicate table id %s", e.ID)
		}
		if numbers[zoneNumber{e.Zone, e.Number}] {
			return fmt.Errorf("floorplan: duplicate table number %d in zone %q", e.Number, e.Zone)
		}
		if e.Capacity <= 0 {
			return fmt.Errorf("floorplan: table %s has non-positive capacity %d", e.ID, e.Capacity)
		}
		seen[e.ID] = true
		numbers[zoneNumber{e.Zone, e.Number}] = true
	}
	return nil
}

// Seed upserts every planned table. Existing tables keep their status, so
// reseeding a live floor never frees an occupied table.
func (p *Plan) Seed(ctx context.Context, registry table.Registry) error {
	for _, e := range p.Tables {
		t := table.Table{
			ID:       e.ID,
			Number:   e.Number,
			Capacity: e.Capacity,
			Zone:     e.Zone,
		}
		if err := registry.Ensure(ctx, t); err != nil {
			return err
		}
	}
	log.Info().Int("tables", len(p.Tables)).Msg("floorplan: registry seeded")
	return nil
}
