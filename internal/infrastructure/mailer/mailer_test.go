package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/ports"
)

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("TaskFlow <no-reply@taskflow.local>", ports.MailMessage{
		To:      "guest@example.com",
		Subject: "You have been invited",
		Body:    "Join the board",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "guest@example.com")
	assert.Contains(t, raw, "Subject: You have been invited")
	assert.Contains(t, raw, "Join the board")
}

func TestBuildMessageRejectsBadRecipient(t *testing.T) {
	_, err := buildMessage("no-reply@taskflow.local", ports.MailMessage{To: "not an address"})
	assert.Error(t, err)
}

func TestDisabledMailerLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m, err := New(config.MailConfig{Enabled: false}, logger.FromZap(zap.New(core)))
	require.NoError(t, err)
	require.IsType(t, &LogMailer{}, m)

	require.NoError(t, m.Send(context.Background(), ports.MailMessage{To: "a@example.com", Subject: "hi"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "a@example.com", logs.All()[0].ContextMap()["to"])
}

func TestEnabledMailerBuildsClient(t *testing.T) {
	m, err := New(config.MailConfig{Enabled: true, Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", TLS: true}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)
}
