package mail

import (
	"strings"
	"testing"
)

func TestBuildMessage_Multipart(t *testing.T) {
	msg := string(buildMessage(
		"digest@example.com",
		[]string{"a@example.com", "b@example.com"},
		"Daily digest",
		"<p>HTML body</p>",
		"Text body",
	))

	for _, want := range []string{
		"From: digest@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Daily digest\r\n",
		"MIME-Version: 1.0\r\n",
		`multipart/alternative; boundary="` + boundary + `"`,
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n",
		"Content-Type: text/html; charset=\"UTF-8\"\r\n",
		"Text body",
		"<p>HTML body</p>",
		"--" + boundary + "--\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}

	// The text part must precede the HTML part for alternative rendering.
	if strings.Index(msg, "Text body") > strings.Index(msg, "<p>HTML body</p>") {
		t.Error("text part rendered after HTML part")
	}
}

func TestBuildMessage_EncodesSubject(t *testing.T) {
	msg := string(buildMessage("d@example.com", []string{"r@example.com"}, "Digest – 2025-03-14", "<p>x</p>", ""))

	if !strings.Contains(msg, "Subject: =?UTF-8?q?") {
		t.Error("non-ASCII subject not Q-encoded")
	}
	if strings.Contains(msg, "Subject: Digest – 2025-03-14\r\n") {
		t.Error("subject sent raw despite non-ASCII content")
	}
}

func TestBuildMessage_SkipsEmptyParts(t *testing.T) {
	msg := string(buildMessage("d@example.com", []string{"r@example.com"}, "S", "<p>x</p>", ""))

	if strings.Contains(msg, "text/plain") {
		t.Error("empty text part still rendered")
	}
	if !strings.Contains(msg, "text/html") {
		t.Error("html part missing")
	}
}

func TestSend_NoRecipients(t *testing.T) {
	m := New(Options{Host: "smtp.example.com", Port: 465, From: "d@example.com", TLSMode: TLSImplicit})

	if err := m.Send(nil, "S", "<p>x</p>", "x"); err != nil {
		t.Errorf("Send with no recipients = %v, want nil", err)
	}
}
