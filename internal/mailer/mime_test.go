package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIMEMessagePlainText(t *testing.T) {
	msg, err := buildMIMEMessage(Email{
		From:     "no-reply@tourimate.local",
		To:       []string{"a@example.com", "b@example.com"},
		Subject:  "Booking confirmed",
		TextBody: "Hello\n",
	}, "tourimate.local")
	require.NoError(t, err)

	assert.Contains(t, msg, "From: no-reply@tourimate.local\r\n")
	assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, msg, "Subject: Booking confirmed\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.NotContains(t, msg, "multipart/alternative")
}

func TestBuildMIMEMessageMultipart(t *testing.T) {
	msg, err := buildMIMEMessage(Email{
		FromName: "TouriMate",
		From:     "no-reply@tourimate.local",
		To:       []string{"a@example.com"},
		Subject:  "Refund processed",
		TextBody: "plain",
		HTMLBody: "<p>html</p>",
	}, "tourimate.local")
	require.NoError(t, err)

	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8\r\n")
	// closing boundary present
	assert.Contains(t, msg, "--\r\n")
	assert.True(t, strings.Contains(msg, "From: TouriMate <no-reply@tourimate.local>"))
}

func TestBuildMIMEMessageEncodesNonASCII(t *testing.T) {
	msg, err := buildMIMEMessage(Email{
		FromName: "Đặt tour",
		From:     "no-reply@tourimate.local",
		To:       []string{"a@example.com"},
		Subject:  "Xác nhận đặt tour",
		TextBody: "ok",
	}, "tourimate.local")
	require.NoError(t, err)

	assert.Contains(t, msg, "=?utf-8?q?")
	assert.NotContains(t, msg, "Subject: Xác nhận đặt tour\r\n")
}

func TestBuildMIMEMessageValidation(t *testing.T) {
	base := Email{
		From:     "no-reply@tourimate.local",
		To:       []string{"a@example.com"},
		Subject:  "s",
		TextBody: "b",
	}

	for name, mutate := range map[string]func(*Email){
		"no recipients": func(e *Email) { e.To = nil },
		"no from":       func(e *Email) { e.From = "" },
		"no subject":    func(e *Email) { e.Subject = "" },
		"no body":       func(e *Email) { e.TextBody = "" },
	} {
		e := base
		mutate(&e)
		_, err := buildMIMEMessage(e, "tourimate.local")
		assert.Error(t, err, name)
	}
}

func TestAllRecipientsIncludesBcc(t *testing.T) {
	e := Email{
		To:  []string{"a@example.com"},
		Cc:  []string{"b@example.com"},
		Bcc: []string{"c@example.com"},
	}
	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com"}, e.AllRecipients())
}
