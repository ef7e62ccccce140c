package notifier

import (
	"context"
	"testing"

	"github.com/rbright/v2md/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNotifyKind_ErrorIsCriticalUrgency(t *testing.T) {
	assert.Equal(t, urgencyCritical, kindError.urgency())
	assert.Equal(t, urgencyLow, kindRecording.urgency())
	assert.Equal(t, urgencyLow, kindTranscribing.urgency())
}

func TestNotifyKind_EachKindHasADistinctIcon(t *testing.T) {
	icons := map[string]bool{}
	for _, k := range []notifyKind{kindRecording, kindTranscribing, kindError} {
		icon := k.icon()
		assert.NotEmpty(t, icon)
		assert.False(t, icons[icon], "icon %q reused across kinds", icon)
		icons[icon] = true
	}
}

func TestNew_DisabledReturnsNoop(t *testing.T) {
	n := New(config.NotificationsConfig{Enable: false}, nil)
	// Must not panic even with no backend configured.
	n.ShowRecording(context.Background())
	n.ShowTranscribing(context.Background())
	n.ShowError(context.Background(), "")
	n.Hide(context.Background())
	assert.IsType(t, noop{}, n)
}
