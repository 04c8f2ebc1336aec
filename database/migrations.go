package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(*mongo.Database) error
}

// migrationRecord tracks applied migrations
type migrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"appliedAt"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create emergencies collection with indexes",
		Up:          createEmergenciesCollection,
	},
	{
		Version:     2,
		Description: "Create emergency responses collection with unique pair index",
		Up:          createEmergencyResponsesCollection,
	},
	{
		Version:     3,
		Description: "Create emergency timeline collection with indexes",
		Up:          createEmergencyTimelineCollection,
	},
	{
		Version:     4,
		Description: "Create volunteer profiles and responder stats indexes",
		Up:          createResponderCollections,
	},
	{
		Version:     5,
		Description: "Create responder locations collection with indexes",
		Up:          createResponderLocationsCollection,
	},
	{
		Version:     6,
		Description: "Create bystander guidance collection with unique step index",
		Up:          createBystanderGuidanceCollection,
	},
	{
		Version:     7,
		Description: "Create training progress collection with unique pair index",
		Up:          createTrainingProgressCollection,
	},
}

// RunMigrations executes all pending migrations
func RunMigrations(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrationsCol := db.Collection("migrations")

	currentVersion := getCurrentMigrationVersion(ctx, migrationsCol)
	logrus.Infof("Current migration version: %d", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.Infof("Running migration %d: %s", migration.Version, migration.Description)

		if err := migration.Up(db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err := migrationsCol.InsertOne(ctx, migrationRecord{
			Version:   migration.Version,
			AppliedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		logrus.Infof("Migration %d completed", migration.Version)
	}

	return nil
}

func getCurrentMigrationVersion(ctx context.Context, col *mongo.Collection) int {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var record migrationRecord
	if err := col.FindOne(ctx, bson.D{}, opts).Decode(&record); err != nil {
		return 0
	}
	return record.Version
}

func createIndexes(db *mongo.Database, collection string, indexes []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	return err
}

func createEmergenciesCollection(db *mongo.Database) error {
	return createIndexes(db, "emergencies", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "triggeredAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "victimId", Value: 1}, {Key: "triggeredAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "primaryResponderId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			// Bystander sweep candidates
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "bystanderModeActive", Value: 1},
				{Key: "triggeredAt", Value: 1},
			},
			Options: options.Index().SetName("bystander_sweep"),
		},
		{
			Keys: bson.D{{Key: "latitude", Value: 1}, {Key: "longitude", Value: 1}},
		},
	})
}

func createEmergencyResponsesCollection(db *mongo.Database) error {
	return createIndexes(db, "emergency_responses", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "emergencyId", Value: 1}, {Key: "responderId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("emergency_responder_unique"),
		},
		{
			Keys: bson.D{{Key: "responderId", Value: 1}, {Key: "notifiedAt", Value: -1}},
		},
	})
}

func createEmergencyTimelineCollection(db *mongo.Database) error {
	return createIndexes(db, "emergency_timeline", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "emergencyId", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	})
}

func createResponderCollections(db *mongo.Database) error {
	err := createIndexes(db, "volunteer_profiles", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "verificationStatus", Value: 1}, {Key: "isAvailable", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "impactScore", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	return createIndexes(db, "responder_stats", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "totalPoints", Value: -1}},
		},
	})
}

func createResponderLocationsCollection(db *mongo.Database) error {
	return createIndexes(db, "responder_locations", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "updatedAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "latitude", Value: 1}, {Key: "longitude", Value: 1}},
		},
	})
}

func createBystanderGuidanceCollection(db *mongo.Database) error {
	return createIndexes(db, "bystander_guidance", []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "emergencyType", Value: 1},
				{Key: "language", Value: 1},
				{Key: "stepNumber", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("guidance_step_unique"),
		},
	})
}

func createTrainingProgressCollection(db *mongo.Database) error {
	return createIndexes(db, "training_progress", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "moduleId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_module_unique"),
		},
	})
}
