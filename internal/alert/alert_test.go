package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/ignite/kitsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	id := "msg-1"
	return &sesv2.SendEmailOutput{MessageId: &id}, nil
}

func sampleAlert() Alert {
	return Alert{
		Severity: SeverityCritical,
		Job:      "send",
		RunID:    "run-1",
		Title:    "broadcast created but Notion write-back failed",
		Details:  map[string]string{"document_id": "doc-1", "broadcast_id": "42"},
		At:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestAlertRendering(t *testing.T) {
	a := sampleAlert()
	assert.Equal(t, "[kitsync critical] send: broadcast created but Notion write-back failed", a.Subject())

	body := a.Body()
	assert.Contains(t, body, "run: run-1")
	assert.Contains(t, body, "at:  2026-03-01T09:00:00Z")
	assert.Less(t, strings.Index(body, "broadcast_id: 42"), strings.Index(body, "document_id: doc-1"))
}

func TestSESNotify(t *testing.T) {
	fake := &fakeSES{}
	n := NewSES(fake, "kitsync@example.com", []string{"ops@example.com"})

	require.NoError(t, n.Notify(context.Background(), sampleAlert()))
	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "kitsync@example.com", *in.FromEmailAddress)
	assert.Equal(t, []string{"ops@example.com"}, in.Destination.ToAddresses)
	assert.Contains(t, *in.Content.Simple.Subject.Data, "send")
	assert.Contains(t, *in.Content.Simple.Body.Text.Data, "document_id: doc-1")
}

func TestSESNotifyError(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	n := NewSES(fake, "kitsync@example.com", []string{"ops@example.com"})

	err := n.Notify(context.Background(), sampleAlert())
	assert.ErrorIs(t, err, fake.err)
}

func TestNewDisabledIsLog(t *testing.T) {
	n, err := New(context.Background(), config.AlertsConfig{})
	require.NoError(t, err)
	assert.IsType(t, Log{}, n)
	assert.NoError(t, n.Notify(context.Background(), sampleAlert()))
}

func TestNewEnabledRequiresAddresses(t *testing.T) {
	_, err := New(context.Background(), config.AlertsConfig{Enabled: true, From: "a@example.com"})
	assert.Error(t, err)
}
