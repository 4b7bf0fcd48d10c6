package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aura-webinar/backend/internal/models"
)

func TestBackoff_DoublesPerRetry(t *testing.T) {
	base := time.Second
	max := time.Minute

	assert.Equal(t, base, backoff(0, base, max))
	assert.Equal(t, 2*time.Second, backoff(1, base, max))
	assert.Equal(t, 4*time.Second, backoff(2, base, max))
}

func TestBackoff_BoundedByMax(t *testing.T) {
	base := time.Second
	max := 5 * time.Second

	assert.Equal(t, max, backoff(10, base, max))
}

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, models.OutboxErrNone, classifyFailure(nil))
	assert.Equal(t, models.OutboxErrPublish, classifyFailure(errors.New("boom")))
}
