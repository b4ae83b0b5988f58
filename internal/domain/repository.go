package domain

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// subscriptionCollection captures the subset of mongo.Collection behavior the
// repository relies on, allowing lightweight stubbing in tests.
type subscriptionCollection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// SubscriptionRepository persists and retrieves schedule subscriptions.
type SubscriptionRepository struct {
	collection subscriptionCollection
}

// NewSubscriptionRepository constructs a SubscriptionRepository.
func NewSubscriptionRepository(collection subscriptionCollection) *SubscriptionRepository {
	return &SubscriptionRepository{collection: collection}
}

// ListForChat returns the chat's subscriptions ordered by id ascending plus
// the exact total for that chat. The count backs the cap check and the
// keyboard decision, so it is a store-side count, not a page length.
func (r *SubscriptionRepository) ListForChat(ctx context.Context, chatID int64) ([]Subscription, int64, error) {
	if r == nil || r.collection == nil {
		return nil, 0, errors.New("subscription repository is not initialized")
	}
	if ctx == nil {
		return nil, 0, errors.New("context is required")
	}
	if chatID == 0 {
		return nil, 0, errors.New("chat id is required")
	}

	filter := bson.M{"chat_id": chatID}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("find subscriptions: %w", err)
	}

	subs, err := decodeSubscriptions(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}

	return subs, count, nil
}

// ListAll returns every stored subscription. Only the notify loop uses this;
// no ordering is guaranteed.
func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]Subscription, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("subscription repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find all subscriptions: %w", err)
	}

	return decodeSubscriptions(ctx, cursor)
}

// Create validates the business rules against the chat's current
// subscriptions and inserts a new record. It returns true when the store
// acknowledged the insert with a new id; false without error means the store
// accepted the call but confirmed nothing.
//
// The duplicate rule is asymmetric on purpose, mirroring the deployed
// behavior: a group subscription collides only on the same group AND the same
// sub-group, while a teacher subscription collides on the teacher name alone.
func (r *SubscriptionRepository) Create(ctx context.Context, chatID int64, scope Scope) (bool, error) {
	sub, err := NewSubscription(chatID, scope)
	if err != nil {
		return false, err
	}

	existing, count, err := r.ListForChat(ctx, chatID)
	if err != nil {
		return false, err
	}

	if count >= MaxSubscriptions {
		return false, ErrSubscriptionLimit
	}

	for _, s := range existing {
		if scope.Kind == ScopeGroup && s.GroupName == scope.Name && s.SubGroup == scope.SubGroup {
			return false, fmt.Errorf("группа %s: %w", scope.Name, ErrAlreadySubscribed)
		}
		if scope.Kind == ScopeTeacher && s.TeacherName == scope.Name {
			return false, fmt.Errorf("преподаватель %s: %w", scope.Name, ErrAlreadySubscribed)
		}
	}

	result, err := r.collection.InsertOne(ctx, sub)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}

	return result != nil && result.InsertedID != nil, nil
}

// Remove deletes a subscription by id and reports whether a record was
// actually removed.
func (r *SubscriptionRepository) Remove(ctx context.Context, id primitive.ObjectID) (bool, error) {
	if r == nil || r.collection == nil {
		return false, errors.New("subscription repository is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if id.IsZero() {
		return false, errors.New("subscription id is required")
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}

	return result != nil && result.DeletedCount > 0, nil
}

func decodeSubscriptions(ctx context.Context, cursor *mongo.Cursor) ([]Subscription, error) {
	if cursor == nil {
		return nil, errors.New("find returned no cursor")
	}

	var subs []Subscription
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}

	for _, sub := range subs {
		if err := sub.Validate(); err != nil {
			return nil, fmt.Errorf("subscription %s: %w", sub.ID.Hex(), err)
		}
	}

	return subs, nil
}
