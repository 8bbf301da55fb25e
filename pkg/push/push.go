// Package push delivers mobile push notifications.
package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier sends a notification to device tokens and reports tokens the provider rejected.
type Notifier interface {
	Send(ctx context.Context, tokens []string, n Notification) (invalid []string, err error)
}

type fcmNotifier struct {
	client *messaging.Client
}

// NewFCMNotifier builds a Firebase Cloud Messaging client; credentialsFile may be empty to use ADC.
func NewFCMNotifier(ctx context.Context, credentialsFile string) (Notifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}
	return &fcmNotifier{client: client}, nil
}

func (f *fcmNotifier) Send(ctx context.Context, tokens []string, n Notification) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	resp, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send push: %w", err)
	}

	var invalid []string
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		if messaging.IsUnregistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			invalid = append(invalid, tokens[i])
		}
	}
	return invalid, nil
}

// Nop drops notifications; used when push is disabled.
type Nop struct{}

func (Nop) Send(context.Context, []string, Notification) ([]string, error) { return nil, nil }
