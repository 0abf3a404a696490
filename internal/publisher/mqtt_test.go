package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RosenErik/svk-scraper/internal/config"
	"github.com/RosenErik/svk-scraper/pkg/models"
)

func TestNewRequiresEnabledConfig(t *testing.T) {
	_, err := New(&config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")

	_, err = New(&config.Config{MQTT: config.MQTTConfig{Enabled: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker address")
}

func TestNewPayload(t *testing.T) {
	forecast := 9391.0
	rec := models.PowerRecord{
		Date:       time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		Hour:       "08-09",
		ForecastMW: &forecast,
		// consumption still pending
		Timestamp:  time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC),
		DateSource: models.DateSourcePage,
	}

	payload := newPayload(rec)
	assert.Equal(t, "2024-01-15", payload.Date)
	assert.Equal(t, "08-09", payload.Hour)
	assert.Equal(t, "2024-01-15T08:00:00Z", payload.Timestamp)

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"date": "2024-01-15",
		"hour": "08-09",
		"forecast_mw": 9391,
		"consumption_mw": null,
		"timestamp": "2024-01-15T08:00:00Z",
		"date_source": "page"
	}`, string(body))
}

func TestNewPayloadOmitsZeroTimestamp(t *testing.T) {
	rec := models.PowerRecord{
		Date:       time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		Hour:       "08-09",
		DateSource: models.DateSourceClock,
	}

	body, err := json.Marshal(newPayload(rec))
	require.NoError(t, err)
	assert.NotContains(t, string(body), "timestamp")
	assert.Contains(t, string(body), `"date_source":"clock"`)
}

func TestNewPayloadCarriesUnparsedDate(t *testing.T) {
	forecast := 1500.0
	rec := models.PowerRecord{
		RawDate:    "måndag 15 januari",
		Hour:       "08-09",
		ForecastMW: &forecast,
		DateSource: models.DateSourcePage,
	}

	body, err := json.Marshal(newPayload(rec))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"raw_date":"måndag 15 januari"`)
}

func TestRecordTopic(t *testing.T) {
	payload := RecordPayload{Date: "2024-01-15", Hour: "08-09"}
	assert.Equal(t, "svk/power/se3/2024-01-15/08-09", recordTopic("svk/power", payload))
}
