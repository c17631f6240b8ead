package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

type captureTransport struct {
	req  *http.Request
	body []byte
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.req = req
	t.body, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Header:     make(http.Header),
	}, nil
}

func TestFCMSenderSend_AlarmPayload(t *testing.T) {
	rt := &captureTransport{}
	sender := &FCMSender{
		projectID:   "pid",
		tokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		client:      &http.Client{Transport: rt},
	}

	err := sender.Send(context.Background(), "fcm-token-1", AlarmPush{
		RuleID:   "rule-1",
		RuleName: "Stale in stage",
		Matched:  3,
		Body:     "3 materials matched",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got := rt.req.URL.String(); !strings.Contains(got, "/projects/pid/messages:send") {
		t.Fatalf("unexpected url: %s", got)
	}

	var payload map[string]any
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	message, _ := payload["message"].(map[string]any)
	if message == nil {
		t.Fatalf("missing message payload")
	}
	if message["token"] != "fcm-token-1" {
		t.Fatalf("unexpected token: %v", message["token"])
	}

	data, _ := message["data"].(map[string]any)
	if data == nil || data["rule_id"] != "rule-1" || data["matched"] != "3" {
		t.Fatalf("unexpected data payload: %v", data)
	}

	notification, _ := message["notification"].(map[string]any)
	if notification == nil {
		t.Fatalf("missing notification payload")
	}
	if notification["title"] != "LamiSys alarm: Stale in stage" {
		t.Fatalf("unexpected notification title: %v", notification["title"])
	}
}

func TestFCMSenderSend_UnregisteredTokenMapsToErrInvalidToken(t *testing.T) {
	rt := &errorTransport{status: http.StatusNotFound, body: `{"error":{"status":"NOT_FOUND","message":"gone","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`}
	sender := &FCMSender{
		projectID:   "pid",
		tokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		client:      &http.Client{Transport: rt},
	}

	err := sender.Send(context.Background(), "stale-token", AlarmPush{RuleName: "r"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

type errorTransport struct {
	status int
	body   string
}

func (t *errorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	_ = req.Body.Close()
	return &http.Response{
		StatusCode: t.status,
		Body:       io.NopCloser(strings.NewReader(t.body)),
		Header:     make(http.Header),
	}, nil
}
