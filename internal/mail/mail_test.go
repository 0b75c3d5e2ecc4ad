package mail

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	s := NewSMTPSender(Config{From: "noreply@example.com"})

	m, err := s.build(Message{
		To:      []string{"office@example.com"},
		Subject: "Completed: Birth Record Request",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
		Attachments: []Attachment{
			{Name: "vital-records-2025-01-01-birth-x.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "Subject: Completed: Birth Record Request")
	assert.Contains(t, out, "office@example.com")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "application/pdf")
	assert.Contains(t, out, "vital-records-2025-01-01-birth-x.pdf")
}

func TestBuildRejectsBadAddress(t *testing.T) {
	s := NewSMTPSender(Config{From: "noreply@example.com"})
	_, err := s.build(Message{To: []string{"not an address"}, Subject: "x"})
	assert.Error(t, err)
}

func TestClientOptionsAuth(t *testing.T) {
	anon := NewSMTPSender(Config{Port: 1025})
	auth := NewSMTPSender(Config{Port: 587, Username: "u", Password: "p", TLSPolicy: "mandatory"})
	assert.Len(t, anon.clientOptions(), 2)
	assert.Len(t, auth.clientOptions(), 5)
}
