package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"goldenminutes/models"
	"goldenminutes/repositories"
	"goldenminutes/utils"
)

//go:embed seed.yaml
var embeddedCatalogue []byte

const defaultModulePoints = 100

// Catalogue is the reference data every deployment starts with.
type Catalogue struct {
	Badges   []models.Badge             `yaml:"badges"`
	Training []models.TrainingModule    `yaml:"training_modules"`
	Areas    []models.AreaSafetyScore   `yaml:"areas"`
	Guidance []models.BystanderGuidance `yaml:"guidance"`
}

// Seeder represents a database seeder
type Seeder struct {
	Name        string
	Description string
	Seed        func(ctx context.Context, store *repositories.Store, catalogue *Catalogue, now time.Time) (int, error)
}

// seeders contains all database seeders
var seeders = []Seeder{
	{
		Name:        "badges",
		Description: "Upsert the badge catalogue",
		Seed:        seedBadges,
	},
	{
		Name:        "training_modules",
		Description: "Upsert training modules and their rewards",
		Seed:        seedTrainingModules,
	},
	{
		Name:        "bystander_guidance",
		Description: "Upsert bystander guidance steps",
		Seed:        seedGuidance,
	},
	{
		Name:        "areas",
		Description: "Create missing safety areas",
		Seed:        seedAreas,
	},
}

// LoadCatalogue reads the catalogue from path, or the embedded copy when
// path is empty.
func LoadCatalogue(path string) (*Catalogue, error) {
	data := embeddedCatalogue
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		data = raw
	}

	var catalogue Catalogue
	if err := yaml.Unmarshal(data, &catalogue); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalogue: %w", err)
	}
	if err := catalogue.Validate(); err != nil {
		return nil, err
	}
	return &catalogue, nil
}

// Validate rejects entries the services could never serve.
func (c *Catalogue) Validate() error {
	var errs []error

	badgeIDs := make(map[string]bool, len(c.Badges))
	for _, badge := range c.Badges {
		if badge.BadgeID == "" {
			errs = append(errs, errors.New("badge without badge_id"))
			continue
		}
		if badgeIDs[badge.BadgeID] {
			errs = append(errs, fmt.Errorf("duplicate badge %q", badge.BadgeID))
		}
		badgeIDs[badge.BadgeID] = true
	}

	for _, module := range c.Training {
		if module.ModuleID == "" {
			errs = append(errs, errors.New("training module without module_id"))
		}
		if module.BadgeIDReward != "" && !badgeIDs[module.BadgeIDReward] {
			errs = append(errs, fmt.Errorf("module %q rewards unknown badge %q", module.ModuleID, module.BadgeIDReward))
		}
	}

	for _, step := range c.Guidance {
		if !utils.IsValidEmergencyType(step.EmergencyType) {
			errs = append(errs, fmt.Errorf("guidance for unknown emergency type %q", step.EmergencyType))
		}
		if !utils.StringSliceContains(models.SupportedLanguages, step.Language) {
			errs = append(errs, fmt.Errorf("guidance in unsupported language %q", step.Language))
		}
		if step.StepNumber < 1 {
			errs = append(errs, fmt.Errorf("guidance %s/%s has step %d", step.EmergencyType, step.Language, step.StepNumber))
		}
	}

	for _, area := range c.Areas {
		if area.AreaName == "" {
			errs = append(errs, errors.New("area without area_name"))
		}
		if !utils.IsValidCoordinate(area.Latitude, area.Longitude) {
			errs = append(errs, fmt.Errorf("area %q has invalid coordinates", area.AreaName))
		}
	}

	return errors.Join(errs...)
}

// RunSeeders applies the catalogue. A failing seeder is logged and the rest
// still run; the joined error reports every failure.
func RunSeeders(ctx context.Context, store *repositories.Store, catalogue *Catalogue, now time.Time) error {
	logrus.Info("🌱 Running database seeders...")

	var errs []error
	for _, seeder := range seeders {
		count, err := seeder.Seed(ctx, store, catalogue, now)
		if err != nil {
			logrus.WithError(err).Errorf("❌ Seeder %s failed", seeder.Name)
			errs = append(errs, fmt.Errorf("seeder %s: %w", seeder.Name, err))
			continue
		}

		logrus.WithField("count", count).Infof("✅ Seeder %s completed", seeder.Name)
	}

	return errors.Join(errs...)
}

func seedBadges(ctx context.Context, store *repositories.Store, catalogue *Catalogue, now time.Time) (int, error) {
	for i := range catalogue.Badges {
		badge := catalogue.Badges[i]
		if badge.CreatedAt.IsZero() {
			badge.CreatedAt = now
		}
		if err := store.Badges.UpsertBadge(ctx, &badge); err != nil {
			return i, err
		}
	}
	return len(catalogue.Badges), nil
}

func seedTrainingModules(ctx context.Context, store *repositories.Store, catalogue *Catalogue, _ time.Time) (int, error) {
	for i := range catalogue.Training {
		module := catalogue.Training[i]
		if module.PointsReward <= 0 {
			module.PointsReward = defaultModulePoints
		}
		if err := store.Training.UpsertModule(ctx, &module); err != nil {
			return i, err
		}
	}
	return len(catalogue.Training), nil
}

func seedGuidance(ctx context.Context, store *repositories.Store, catalogue *Catalogue, _ time.Time) (int, error) {
	for i := range catalogue.Guidance {
		step := catalogue.Guidance[i]
		if err := store.Guidance.UpsertGuidance(ctx, &step); err != nil {
			return i, err
		}
	}
	return len(catalogue.Guidance), nil
}

// seedAreas only inserts areas that do not exist yet so recalculated
// metrics survive a restart.
func seedAreas(ctx context.Context, store *repositories.Store, catalogue *Catalogue, now time.Time) (int, error) {
	created := 0
	for i := range catalogue.Areas {
		area := catalogue.Areas[i]

		_, err := store.Areas.GetArea(ctx, area.AreaName)
		if err == nil {
			continue
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return created, err
		}

		if area.RadiusKm <= 0 {
			area.RadiusKm = models.DefaultAreaRadiusKm
		}
		area.CalculateSafetyScore()
		area.LastCalculated = now

		if err := store.Areas.UpsertArea(ctx, &area); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
