package repositories

import (
	"context"
	"errors"
	"time"

	"goldenminutes/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EmergencyRepository struct {
	database            *mongo.Database
	emergencyCollection *mongo.Collection
	responsesCollection *mongo.Collection
	timelineCollection  *mongo.Collection
}

func NewEmergencyRepository(database *mongo.Database) *EmergencyRepository {
	return &EmergencyRepository{
		database:            database,
		emergencyCollection: database.Collection("emergencies"),
		responsesCollection: database.Collection("emergency_responses"),
		timelineCollection:  database.Collection("emergency_timeline"),
	}
}

// =================== BASIC CRUD OPERATIONS ===================

func (er *EmergencyRepository) Create(ctx context.Context, emergency *models.Emergency) error {
	if emergency.ID == "" {
		emergency.ID = uuid.NewString()
	}
	now := time.Now()
	if emergency.TriggeredAt.IsZero() {
		emergency.TriggeredAt = now
	}
	emergency.CreatedAt = now
	emergency.UpdatedAt = now

	if emergency.Status == "" {
		emergency.Status = models.EmergencyStatusActive
	}

	_, err := er.emergencyCollection.InsertOne(ctx, emergency)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		logrus.Errorf("Failed to create emergency: %v", err)
		return err
	}

	return nil
}

func (er *EmergencyRepository) GetByID(ctx context.Context, id string) (*models.Emergency, error) {
	var emergency models.Emergency
	err := er.emergencyCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&emergency)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logrus.Errorf("Failed to get emergency by ID: %v", err)
		return nil, err
	}

	return &emergency, nil
}

func (er *EmergencyRepository) List(ctx context.Context, filter EmergencyFilter) ([]models.Emergency, error) {
	opts := options.Find().SetSort(bson.D{{Key: "triggeredAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := er.emergencyCollection.Find(ctx, buildEmergencyQuery(filter), opts)
	if err != nil {
		logrus.Errorf("Failed to list emergencies: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	emergencies := []models.Emergency{}
	if err = cursor.All(ctx, &emergencies); err != nil {
		logrus.Errorf("Failed to decode emergencies: %v", err)
		return nil, err
	}

	return emergencies, nil
}

func (er *EmergencyRepository) Count(ctx context.Context, filter EmergencyFilter) (int64, error) {
	count, err := er.emergencyCollection.CountDocuments(ctx, buildEmergencyQuery(filter))
	if err != nil {
		logrus.Errorf("Failed to count emergencies: %v", err)
		return 0, err
	}
	return count, nil
}

func buildEmergencyQuery(filter EmergencyFilter) bson.M {
	query := bson.M{}

	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.VictimID != "" {
		query["victimId"] = filter.VictimID
	}
	if filter.PrimaryResponderID != "" {
		query["primaryResponderId"] = filter.PrimaryResponderID
	}
	if filter.ActiveOrAssignedTo != "" {
		query["$or"] = []bson.M{
			{"status": models.EmergencyStatusActive},
			{"primaryResponderId": filter.ActiveOrAssignedTo},
		}
	}

	triggered := bson.M{}
	if filter.TriggeredAfter != nil {
		triggered["$gte"] = *filter.TriggeredAfter
	}
	if filter.TriggeredBefore != nil {
		triggered["$lte"] = *filter.TriggeredBefore
	}
	if len(triggered) > 0 {
		query["triggeredAt"] = triggered
	}

	if filter.Bounds != nil {
		query["latitude"] = bson.M{"$gte": filter.Bounds.SouthWest.Latitude, "$lte": filter.Bounds.NorthEast.Latitude}
		query["longitude"] = bson.M{"$gte": filter.Bounds.SouthWest.Longitude, "$lte": filter.Bounds.NorthEast.Longitude}
	}

	return query
}

// =================== CONDITIONAL UPDATES ===================

func (er *EmergencyRepository) AssignPrimaryResponder(ctx context.Context, emergencyID, responderID string, at time.Time) (*models.Emergency, *models.EmergencyResponse, error) {
	session, err := er.database.Client().StartSession()
	if err != nil {
		logrus.Errorf("Failed to start session: %v", err)
		return nil, nil, err
	}
	defer session.EndSession(ctx)

	var emergency models.Emergency
	var response models.EmergencyResponse

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := bson.M{
			"_id":                emergencyID,
			"status":             models.EmergencyStatusActive,
			"primaryResponderId": nil,
		}
		update := bson.M{"$set": bson.M{
			"primaryResponderId":  responderID,
			"status":              models.EmergencyStatusResponderAssigned,
			"responderAcceptedAt": at,
			"updatedAt":           at,
		}}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		if err := er.emergencyCollection.FindOneAndUpdate(sc, filter, update, opts).Decode(&emergency); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrNotModified
			}
			return nil, err
		}

		responseFilter := bson.M{"emergencyId": emergencyID, "responderId": responderID}
		responseUpdate := bson.M{
			"$set": bson.M{
				"status":      models.ResponseStatusAccepted,
				"respondedAt": at,
			},
			"$setOnInsert": bson.M{
				"_id":        uuid.NewString(),
				"notifiedAt": at,
			},
		}
		responseOpts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
		if err := er.responsesCollection.FindOneAndUpdate(sc, responseFilter, responseUpdate, responseOpts).Decode(&response); err != nil {
			return nil, err
		}

		return nil, nil
	})

	if err != nil {
		if errors.Is(err, ErrNotModified) {
			if _, getErr := er.GetByID(ctx, emergencyID); getErr != nil {
				return nil, nil, getErr
			}
			return nil, nil, ErrNotModified
		}
		logrus.Errorf("Failed to assign primary responder: %v", err)
		return nil, nil, err
	}

	return &emergency, &response, nil
}

var statusTimestampFields = map[string]string{
	models.EmergencyStatusResponderAssigned: "responderAcceptedAt",
	models.EmergencyStatusResponderEnRoute:  "responderEnRouteAt",
	models.EmergencyStatusResponderArrived:  "responderArrivedAt",
	models.EmergencyStatusResolved:          "resolvedAt",
	models.EmergencyStatusCancelled:         "cancelledAt",
}

func (er *EmergencyRepository) TransitionStatus(ctx context.Context, transition StatusTransition) (*models.Emergency, error) {
	filter := bson.M{
		"_id":    transition.EmergencyID,
		"status": bson.M{"$in": transition.From},
	}
	if transition.PrimaryResponderID != "" {
		filter["primaryResponderId"] = transition.PrimaryResponderID
	}

	set := bson.M{
		"status":    transition.To,
		"updatedAt": transition.At,
	}
	if field, ok := statusTimestampFields[transition.To]; ok {
		set[field] = transition.At
	}
	if transition.Resolution != "" {
		set["resolution"] = transition.Resolution
	}
	if transition.LifeSaved {
		set["lifeSaved"] = true
	}
	if transition.CancellationReason != "" {
		set["cancellationReason"] = transition.CancellationReason
	}

	var emergency models.Emergency
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := er.emergencyCollection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&emergency)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := er.GetByID(ctx, transition.EmergencyID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrNotModified
		}
		logrus.Errorf("Failed to transition emergency status: %v", err)
		return nil, err
	}

	return &emergency, nil
}

func (er *EmergencyRepository) ActivateBystanderMode(ctx context.Context, emergencyID string, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":                 emergencyID,
		"status":              models.EmergencyStatusActive,
		"primaryResponderId":  nil,
		"bystanderModeActive": false,
	}
	update := bson.M{"$set": bson.M{
		"bystanderModeActive":      true,
		"bystanderModeActivatedAt": at,
		"updatedAt":                at,
	}}

	result, err := er.emergencyCollection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.Errorf("Failed to activate bystander mode: %v", err)
		return false, err
	}

	if result.ModifiedCount == 0 {
		if _, err := er.GetByID(ctx, emergencyID); err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}

func (er *EmergencyRepository) FindBystanderCandidates(ctx context.Context, cutoff time.Time) ([]models.Emergency, error) {
	filter := bson.M{
		"status":              models.EmergencyStatusActive,
		"primaryResponderId":  nil,
		"bystanderModeActive": false,
		"triggeredAt":         bson.M{"$lte": cutoff},
	}

	cursor, err := er.emergencyCollection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "triggeredAt", Value: 1}}))
	if err != nil {
		logrus.Errorf("Failed to find bystander candidates: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	emergencies := []models.Emergency{}
	if err = cursor.All(ctx, &emergencies); err != nil {
		return nil, err
	}

	return emergencies, nil
}

// =================== RESPONSE OPERATIONS ===================

func (er *EmergencyRepository) GetResponse(ctx context.Context, emergencyID, responderID string) (*models.EmergencyResponse, error) {
	var response models.EmergencyResponse
	err := er.responsesCollection.FindOne(ctx, bson.M{
		"emergencyId": emergencyID,
		"responderId": responderID,
	}).Decode(&response)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logrus.Errorf("Failed to get emergency response: %v", err)
		return nil, err
	}

	return &response, nil
}

func (er *EmergencyRepository) CreateResponseIfAbsent(ctx context.Context, response *models.EmergencyResponse) (*models.EmergencyResponse, bool, error) {
	if response.ID == "" {
		response.ID = uuid.NewString()
	}

	_, err := er.responsesCollection.InsertOne(ctx, response)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, getErr := er.GetResponse(ctx, response.EmergencyID, response.ResponderID)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		logrus.Errorf("Failed to create emergency response: %v", err)
		return nil, false, err
	}

	return response, true, nil
}

func (er *EmergencyRepository) SaveResponse(ctx context.Context, response *models.EmergencyResponse) error {
	_, err := er.responsesCollection.ReplaceOne(ctx, bson.M{"_id": response.ID}, response, options.Replace().SetUpsert(true))
	if err != nil {
		logrus.Errorf("Failed to save emergency response: %v", err)
		return err
	}
	return nil
}

func (er *EmergencyRepository) ListResponses(ctx context.Context, emergencyID string) ([]models.EmergencyResponse, error) {
	responses, err := er.findResponses(ctx, bson.M{"emergencyId": emergencyID})
	if err != nil {
		return nil, err
	}
	SortResponses(responses)
	return responses, nil
}

func (er *EmergencyRepository) ListResponsesByResponder(ctx context.Context, responderID string) ([]models.EmergencyResponse, error) {
	return er.findResponses(ctx, bson.M{"responderId": responderID})
}

func (er *EmergencyRepository) findResponses(ctx context.Context, filter bson.M) ([]models.EmergencyResponse, error) {
	opts := options.Find().SetSort(bson.D{{Key: "notifiedAt", Value: -1}})
	cursor, err := er.responsesCollection.Find(ctx, filter, opts)
	if err != nil {
		logrus.Errorf("Failed to list emergency responses: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	responses := []models.EmergencyResponse{}
	if err = cursor.All(ctx, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

// =================== TIMELINE ===================

func (er *EmergencyRepository) AppendTimeline(ctx context.Context, entry *models.EmergencyTimeline) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if _, err := er.timelineCollection.InsertOne(ctx, entry); err != nil {
		logrus.Errorf("Failed to append timeline entry: %v", err)
		return err
	}
	return nil
}

func (er *EmergencyRepository) GetTimeline(ctx context.Context, emergencyID string) ([]models.EmergencyTimeline, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := er.timelineCollection.Find(ctx, bson.M{"emergencyId": emergencyID}, opts)
	if err != nil {
		logrus.Errorf("Failed to get emergency timeline: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.EmergencyTimeline{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
