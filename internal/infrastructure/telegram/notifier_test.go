package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

func TestChannelPublish(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("chat_id") != "@stadtblatt" || r.Form.Get("parse_mode") != "HTML" {
			t.Errorf("unexpected form %v", r.Form)
		}
		text := r.Form.Get("text")
		if !strings.Contains(text, "<b>Brücke &amp; Straße gesperrt</b>") || !strings.Contains(text, "https://cms.example/bruecke") {
			t.Errorf("unexpected text %q", text)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77,"chat":{"username":"stadtblatt"}}}`))
	}))
	defer server.Close()

	ch := newChannel(server.URL, "TOKEN", "@stadtblatt", server.Client())
	res, err := ch.Publish(context.Background(), ports.PublishRequest{
		Draft: domain.Draft{Title: "Brücke & Straße gesperrt", Lead: "Ab Montag.", PrimaryURL: "https://cms.example/bruecke"},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.RemoteID != "77" || res.URL != "https://t.me/stadtblatt/77" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestChannelPublishErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	_, err := newChannel(server.URL, "TOKEN", "@missing", server.Client()).Publish(context.Background(), ports.PublishRequest{})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected api error, got %v", err)
	}

	if _, err := NewChannel("", "").Publish(context.Background(), ports.PublishRequest{}); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}
