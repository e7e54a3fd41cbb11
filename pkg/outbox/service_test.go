package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/angelmondragon/printshop-backend/pkg/outbox/payloads"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:outbox_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(nil, nil)
	docID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventDocumentFinalized,
			AggregateType: enums.AggregateDocument,
			AggregateID:   docID,
			Actor:         &ActorRef{SessionKey: "sess-1"},
			Data: payloads.DocumentFinalizedEvent{
				DocumentID:  docID,
				DisplayCode: "V-000001",
				Type:        enums.DocumentSale,
				Total:       decimal.RequireFromString("46.62"),
			},
		})
	})
	require.NoError(t, err)

	rows, err := NewRepository().ListForAggregate(conn, docID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventDocumentFinalized, rows[0].EventType)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, "sess-1", envelope.Actor.SessionKey)

	var data payloads.DocumentFinalizedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "V-000001", data.DisplayCode)
	assert.True(t, data.Total.Equal(decimal.RequireFromString("46.62")))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(nil, nil)
	docID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregateDocument,
			AggregateID:   docID,
			Data:          payloads.PaymentRecordedEvent{DocumentID: docID},
		}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	rows, err := NewRepository().ListForAggregate(conn, docID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRejectsMissingTxAndUnknownType(t *testing.T) {
	svc := NewService(nil, nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventPaymentRecorded}))

	conn := openTestDB(t)
	require.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "order_created"}))
}
