// Package audit records workout lifecycle events outside the completion
// engine's transaction boundary. Writes are best-effort: a failed audit write
// is logged and dropped, never surfaced to the caller.
package audit

import (
	"context"
	"log"
	"time"

	"gymtrack/workout-app/internal/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const auditCollectionName = "audit_events"

// Event is one recorded lifecycle event.
type Event struct {
	EventID    string                `bson:"eventId" json:"eventId"`
	UserID     primitive.ObjectID    `bson:"userId" json:"userId"`
	SessionID  primitive.ObjectID    `bson:"sessionId" json:"sessionId"`
	Status     domain.SessionStatus  `bson:"status" json:"status"`
	Metrics    domain.SessionMetrics `bson:"metrics" json:"metrics"`
	RecordedAt time.Time             `bson:"recordedAt" json:"recordedAt"`
}

// MongoAuditLogger appends events to a dedicated collection. Implements the
// service.AuditLogger collaborator.
type MongoAuditLogger struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoAuditLogger creates an audit logger on the given database.
func NewMongoAuditLogger(db *mongo.Database) *MongoAuditLogger {
	return &MongoAuditLogger{
		collection: db.Collection(auditCollectionName),
		timeout:    5 * time.Second,
	}
}

// LogSessionEvent records a completion or abort. Called after commit, off the
// request path, so it carries its own context deadline.
func (l *MongoAuditLogger) LogSessionEvent(userID, sessionID primitive.ObjectID, status domain.SessionStatus, metrics domain.SessionMetrics) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	event := Event{
		EventID:    uuid.NewString(),
		UserID:     userID,
		SessionID:  sessionID,
		Status:     status,
		Metrics:    metrics,
		RecordedAt: time.Now().UTC(),
	}
	if _, err := l.collection.InsertOne(ctx, event); err != nil {
		log.Printf("WARN: failed to record audit event for session %s: %v", sessionID.Hex(), err)
	}
}
