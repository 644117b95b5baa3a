package mail_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/d9705996/huddle/internal/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoHostLogs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	s, err := mail.New(mail.Config{}, log)
	require.NoError(t, err)
	require.IsType(t, &mail.LogSender{}, s)

	require.NoError(t, s.Send(context.Background(), mail.Message{
		To: []string{"a@x.com"}, Subject: "Your OTP", Text: "Your OTP is 1234",
	}))
	assert.Contains(t, buf.String(), "a@x.com")
	assert.Contains(t, buf.String(), "Your OTP is 1234")
}

func TestNew_WithHost(t *testing.T) {
	s, err := mail.New(mail.Config{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "no-reply@example.com"}, slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &mail.SMTPSender{}, s)
}
