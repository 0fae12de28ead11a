package integration

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	"caseforge-be/internal/entity"
	"caseforge-be/internal/repository/implementation"
	"caseforge-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)

	require.NoError(t, gormDB.AutoMigrate(
		&entity.ReviewSnapshot{},
		&entity.Feedback{},
		&entity.AnalyticsEvent{},
	))

	ctx := context.Background()
	sessionId := uuid.New()

	t.Run("Snapshot save and load round trip", func(t *testing.T) {
		repo := implementation.NewSnapshotRepository(gormDB)

		payload := []byte(`{"case_title":"Chest pain review"}`)
		require.NoError(t, repo.Save(ctx, sessionId, entity.SnapshotSlotDocument, payload))

		loaded, found, err := repo.Load(ctx, sessionId, entity.SnapshotSlotDocument)
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, string(payload), string(loaded))
	})

	t.Run("Snapshot save overwrites same slot", func(t *testing.T) {
		repo := implementation.NewSnapshotRepository(gormDB)

		require.NoError(t, repo.Save(ctx, sessionId, entity.SnapshotSlotDocument, []byte(`{"case_title":"v2"}`)))

		loaded, found, err := repo.Load(ctx, sessionId, entity.SnapshotSlotDocument)
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, `{"case_title":"v2"}`, string(loaded))
	})

	t.Run("Load after clear reports absent", func(t *testing.T) {
		repo := implementation.NewSnapshotRepository(gormDB)

		require.NoError(t, repo.Save(ctx, sessionId, entity.SnapshotSlotExperienceGroups, []byte(`["Acute illness"]`)))
		require.NoError(t, repo.Clear(ctx, sessionId))

		_, found, err := repo.Load(ctx, sessionId, entity.SnapshotSlotDocument)
		require.NoError(t, err)
		assert.False(t, found)

		_, found, err = repo.Load(ctx, sessionId, entity.SnapshotSlotExperienceGroups)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Feedback create", func(t *testing.T) {
		repo := implementation.NewFeedbackRepository(gormDB)

		feedback := entity.Feedback{
			Id:        uuid.New(),
			SessionId: sessionId,
			Comment:   "Integration test feedback",
			Email:     "tester@example.com",
			CreatedAt: time.Now(),
		}
		require.NoError(t, repo.Create(ctx, &feedback))
	})

	t.Run("Analytics event create", func(t *testing.T) {
		repo := implementation.NewAnalyticsEventRepository(gormDB)

		payload, err := json.Marshal(map[string]interface{}{"session_id": sessionId.String()})
		require.NoError(t, err)

		event := entity.AnalyticsEvent{
			Id:         uuid.New(),
			SessionId:  sessionId,
			EventType:  "review_generated",
			Payload:    datatypes.JSON(payload),
			OccurredAt: time.Now(),
			CreatedAt:  time.Now(),
		}
		require.NoError(t, repo.Create(ctx, &event))
	})
}
