package repositories

import (
	"context"
	"errors"
	"time"

	"goldenminutes/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CatalogRepository holds the configuration-like collections: badges, area
// safety scores, bystander guidance and training.
type CatalogRepository struct {
	badgeCollection    *mongo.Collection
	areaCollection     *mongo.Collection
	guidanceCollection *mongo.Collection
	moduleCollection   *mongo.Collection
	progressCollection *mongo.Collection
}

func NewCatalogRepository(database *mongo.Database) *CatalogRepository {
	return &CatalogRepository{
		badgeCollection:    database.Collection("badges"),
		areaCollection:     database.Collection("area_safety_scores"),
		guidanceCollection: database.Collection("bystander_guidance"),
		moduleCollection:   database.Collection("training_modules"),
		progressCollection: database.Collection("training_progress"),
	}
}

// =================== BADGES ===================

func (cr *CatalogRepository) UpsertBadge(ctx context.Context, badge *models.Badge) error {
	if badge.CreatedAt.IsZero() {
		badge.CreatedAt = time.Now()
	}
	_, err := cr.badgeCollection.ReplaceOne(ctx, bson.M{"_id": badge.BadgeID}, badge, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to upsert badge %s: %v", badge.BadgeID, err)
		return err
	}
	return nil
}

func (cr *CatalogRepository) GetBadge(ctx context.Context, badgeID string) (*models.Badge, error) {
	var badge models.Badge
	if err := cr.badgeCollection.FindOne(ctx, bson.M{"_id": badgeID}).Decode(&badge); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &badge, nil
}

func (cr *CatalogRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	badges := []models.Badge{}
	if err := findAll(ctx, cr.badgeCollection, bson.M{}, bson.D{{Key: "_id", Value: 1}}, &badges); err != nil {
		logrus.Errorf("Failed to list badges: %v", err)
		return nil, err
	}
	return badges, nil
}

// =================== AREAS ===================

func (cr *CatalogRepository) UpsertArea(ctx context.Context, area *models.AreaSafetyScore) error {
	_, err := cr.areaCollection.ReplaceOne(ctx, bson.M{"_id": area.AreaName}, area, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to upsert area %s: %v", area.AreaName, err)
		return err
	}
	return nil
}

func (cr *CatalogRepository) GetArea(ctx context.Context, areaName string) (*models.AreaSafetyScore, error) {
	var area models.AreaSafetyScore
	if err := cr.areaCollection.FindOne(ctx, bson.M{"_id": areaName}).Decode(&area); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &area, nil
}

func (cr *CatalogRepository) ListAreas(ctx context.Context) ([]models.AreaSafetyScore, error) {
	areas := []models.AreaSafetyScore{}
	if err := findAll(ctx, cr.areaCollection, bson.M{}, bson.D{{Key: "safetyScore", Value: -1}}, &areas); err != nil {
		logrus.Errorf("Failed to list areas: %v", err)
		return nil, err
	}
	return areas, nil
}

// =================== GUIDANCE ===================

func (cr *CatalogRepository) UpsertGuidance(ctx context.Context, step *models.BystanderGuidance) error {
	filter := bson.M{
		"emergencyType": step.EmergencyType,
		"language":      step.Language,
		"stepNumber":    step.StepNumber,
	}
	_, err := cr.guidanceCollection.ReplaceOne(ctx, filter, step, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to upsert guidance step: %v", err)
		return err
	}
	return nil
}

func (cr *CatalogRepository) ListGuidance(ctx context.Context, emergencyType, language string) ([]models.BystanderGuidance, error) {
	steps := []models.BystanderGuidance{}
	filter := bson.M{"emergencyType": emergencyType, "language": language}
	if err := findAll(ctx, cr.guidanceCollection, filter, bson.D{{Key: "stepNumber", Value: 1}}, &steps); err != nil {
		logrus.Errorf("Failed to list guidance: %v", err)
		return nil, err
	}
	return steps, nil
}

// =================== TRAINING ===================

func (cr *CatalogRepository) UpsertModule(ctx context.Context, module *models.TrainingModule) error {
	_, err := cr.moduleCollection.ReplaceOne(ctx, bson.M{"_id": module.ModuleID}, module, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to upsert training module: %v", err)
		return err
	}
	return nil
}

func (cr *CatalogRepository) GetModule(ctx context.Context, moduleID string) (*models.TrainingModule, error) {
	var module models.TrainingModule
	if err := cr.moduleCollection.FindOne(ctx, bson.M{"_id": moduleID}).Decode(&module); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &module, nil
}

func (cr *CatalogRepository) ListModules(ctx context.Context) ([]models.TrainingModule, error) {
	modules := []models.TrainingModule{}
	if err := findAll(ctx, cr.moduleCollection, bson.M{}, bson.D{{Key: "_id", Value: 1}}, &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

func (cr *CatalogRepository) GetProgress(ctx context.Context, userID, moduleID string) (*models.TrainingProgress, error) {
	var progress models.TrainingProgress
	err := cr.progressCollection.FindOne(ctx, bson.M{"userId": userID, "moduleId": moduleID}).Decode(&progress)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &progress, nil
}

func (cr *CatalogRepository) SaveProgress(ctx context.Context, progress *models.TrainingProgress) error {
	filter := bson.M{"userId": progress.UserID, "moduleId": progress.ModuleID}
	_, err := cr.progressCollection.ReplaceOne(ctx, filter, progress, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to save training progress: %v", err)
		return err
	}
	return nil
}

func (cr *CatalogRepository) ListProgress(ctx context.Context, userID string) ([]models.TrainingProgress, error) {
	progress := []models.TrainingProgress{}
	if err := findAll(ctx, cr.progressCollection, bson.M{"userId": userID}, bson.D{{Key: "completedAt", Value: 1}}, &progress); err != nil {
		return nil, err
	}
	return progress, nil
}

func findAll(ctx context.Context, collection *mongo.Collection, filter bson.M, sort bson.D, out interface{}) error {
	cursor, err := collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

// NewMongoStore wires every store to one database.
func NewMongoStore(database *mongo.Database) *Store {
	catalog := NewCatalogRepository(database)
	return &Store{
		Emergencies: NewEmergencyRepository(database),
		Responders:  NewResponderRepository(database),
		Badges:      catalog,
		Areas:       catalog,
		Guidance:    catalog,
		Training:    catalog,
	}
}
