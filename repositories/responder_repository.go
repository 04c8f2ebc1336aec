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

type ResponderRepository struct {
	volunteerCollection *mongo.Collection
	statsCollection     *mongo.Collection
	locationCollection  *mongo.Collection
}

func NewResponderRepository(database *mongo.Database) *ResponderRepository {
	return &ResponderRepository{
		volunteerCollection: database.Collection("volunteer_profiles"),
		statsCollection:     database.Collection("responder_stats"),
		locationCollection:  database.Collection("responder_locations"),
	}
}

// =================== VOLUNTEER PROFILES ===================

func (rr *ResponderRepository) CreateVolunteer(ctx context.Context, profile *models.VolunteerProfile) error {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if _, err := rr.volunteerCollection.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		logrus.Errorf("Failed to create volunteer profile: %v", err)
		return err
	}
	return nil
}

func (rr *ResponderRepository) GetVolunteer(ctx context.Context, userID string) (*models.VolunteerProfile, error) {
	var profile models.VolunteerProfile
	if err := rr.volunteerCollection.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logrus.Errorf("Failed to get volunteer profile: %v", err)
		return nil, err
	}
	return &profile, nil
}

func (rr *ResponderRepository) SaveVolunteer(ctx context.Context, profile *models.VolunteerProfile) error {
	profile.UpdatedAt = time.Now()
	_, err := rr.volunteerCollection.ReplaceOne(ctx, bson.M{"_id": profile.UserID}, profile, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to save volunteer profile: %v", err)
		return err
	}
	return nil
}

func (rr *ResponderRepository) ListVolunteers(ctx context.Context, filter VolunteerFilter) ([]models.VolunteerProfile, error) {
	query := bson.M{}
	if filter.VerificationStatus != "" {
		query["verificationStatus"] = filter.VerificationStatus
	}
	if filter.AvailableOnly {
		query["isAvailable"] = true
	}

	cursor, err := rr.volunteerCollection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "impactScore", Value: -1}}))
	if err != nil {
		logrus.Errorf("Failed to list volunteer profiles: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	profiles := []models.VolunteerProfile{}
	if err = cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// =================== RESPONDER STATS ===================

func (rr *ResponderRepository) GetStats(ctx context.Context, responderID string) (*models.ResponderStats, error) {
	var stats models.ResponderStats
	if err := rr.statsCollection.FindOne(ctx, bson.M{"_id": responderID}).Decode(&stats); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logrus.Errorf("Failed to get responder stats: %v", err)
		return nil, err
	}
	if stats.Badges == nil {
		stats.Badges = []string{}
	}
	return &stats, nil
}

func (rr *ResponderRepository) SaveStats(ctx context.Context, stats *models.ResponderStats) error {
	stats.UpdatedAt = time.Now()
	_, err := rr.statsCollection.ReplaceOne(ctx, bson.M{"_id": stats.ResponderID}, stats, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to save responder stats: %v", err)
		return err
	}
	return nil
}

func (rr *ResponderRepository) ListStats(ctx context.Context) ([]models.ResponderStats, error) {
	cursor, err := rr.statsCollection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "totalPoints", Value: -1}}))
	if err != nil {
		logrus.Errorf("Failed to list responder stats: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := []models.ResponderStats{}
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// =================== LOCATIONS ===================

func (rr *ResponderRepository) SaveLocation(ctx context.Context, location *models.ResponderLocation) error {
	if location.UpdatedAt.IsZero() {
		location.UpdatedAt = time.Now()
	}
	_, err := rr.locationCollection.ReplaceOne(ctx, bson.M{"_id": location.ResponderID}, location, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to save responder location: %v", err)
		return err
	}
	return nil
}

func (rr *ResponderRepository) GetLocation(ctx context.Context, responderID string) (*models.ResponderLocation, error) {
	var location models.ResponderLocation
	if err := rr.locationCollection.FindOne(ctx, bson.M{"_id": responderID}).Decode(&location); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logrus.Errorf("Failed to get responder location: %v", err)
		return nil, err
	}
	return &location, nil
}

func (rr *ResponderRepository) ListLocations(ctx context.Context) ([]models.ResponderLocation, error) {
	cursor, err := rr.locationCollection.Find(ctx, bson.M{})
	if err != nil {
		logrus.Errorf("Failed to list responder locations: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	locations := []models.ResponderLocation{}
	if err = cursor.All(ctx, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}
