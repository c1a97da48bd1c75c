package messaging

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeMessageCreator struct {
	params *twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessageCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSendMessage(t *testing.T) {
	fake := &fakeMessageCreator{}
	s := &TwilioService{api: fake, from: "+15555558888"}

	if err := s.SendMessage(context.Background(), "+15555550123", "Look behind the statue", "tb-100"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if fake.params == nil {
		t.Fatal("CreateMessage was not called")
	}
	if got := fake.params.To; got == nil || *got != "+15555550123" {
		t.Errorf("unexpected To: %v", got)
	}
	if got := fake.params.From; got == nil || *got != "+15555558888" {
		t.Errorf("unexpected From: %v", got)
	}
	if got := fake.params.Body; got == nil || *got != "Look behind the statue" {
		t.Errorf("unexpected Body: %v", got)
	}
}

func TestTwilioSendMessageError(t *testing.T) {
	fake := &fakeMessageCreator{err: errors.New("auth failure")}
	s := &TwilioService{api: fake, from: "+15555558888"}

	if err := s.SendMessage(context.Background(), "+15555550123", "hello", "tb-1"); err == nil {
		t.Error("expected error from Twilio API, got nil")
	}
}

func TestNewTwilioServiceRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioService(); err == nil {
		t.Error("expected error without credentials, got nil")
	}
	if _, err := NewTwilioService(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without from number, got nil")
	}
}
