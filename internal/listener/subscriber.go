package listener

import (
	"context"
	"errors"
	"fmt"
	"log"

	nusecase "mentorhub-backend/internal/notification/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Subscriber receives document changes from a Pub/Sub subscription
type Subscriber struct {
	client    *pubsub.Client
	subName   string
	processor *Processor
}

// NewSubscriber connects to Pub/Sub
func NewSubscriber(ctx context.Context, projectID, subName, credentialsFile string, processor *Processor) (*Subscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Subscriber{
		client:    client,
		subName:   subName,
		processor: processor,
	}, nil
}

// Start receives until ctx is cancelled. Every message is acked: a failed
// notification must never be redelivered into the change that caused it.
func (s *Subscriber) Start(ctx context.Context) error {
	sub := s.client.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("checking subscription %s: %w", s.subName, err)
	}
	if !exists {
		return fmt.Errorf("subscription %s does not exist", s.subName)
	}

	log.Printf("[Listener] Listening for changes on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		defer msg.Ack()
		s.handleMessage(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receiving from %s: %w", s.subName, err)
	}
	log.Println("[Listener] Stopped")
	return nil
}

func (s *Subscriber) handleMessage(ctx context.Context, msg *pubsub.Message) {
	summary, err := s.processor.Process(ctx, msg.Data, nusecase.Options{})
	switch {
	case errors.Is(err, ErrIgnored):
		return
	case err != nil:
		log.Printf("[Listener] Message %s failed: %v", msg.ID, err)
	default:
		log.Printf("[Listener] Message %s handled: %d notifications", msg.ID, summary.Notifications())
	}
}

// Close releases the Pub/Sub client
func (s *Subscriber) Close() error {
	return s.client.Close()
}
