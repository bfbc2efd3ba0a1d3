package fcm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// MaxBatchSize is the most messages FCM accepts in one SendEach call.
const MaxBatchSize = 500

// Error codes reported in SendResult.ErrorCode.
const (
	CodeUnregistered     = "messaging/registration-token-not-registered"
	CodeInvalidArgument  = "messaging/invalid-argument"
	CodeUnavailable      = "messaging/unavailable"
	CodeQuotaExceeded    = "messaging/quota-exceeded"
	CodeSenderIDMismatch = "messaging/mismatched-credential"
	CodeThirdPartyAuth   = "messaging/third-party-auth-error"
	CodeUnknown          = "messaging/unknown-error"
)

var errMissingResponse = errors.New("no response for message")

// NewApp initializes the Firebase app shared by messaging and Firestore
func NewApp(ctx context.Context, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
	limiter         *rate.Limiter
}

// NewClient creates a messaging client. A positive ratePerSecond caps the
// number of SendEach calls per second across every caller of this client.
func NewClient(ctx context.Context, app *firebase.App, ratePerSecond float64) (*Client, error) {
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	c := &Client{messagingClient: messagingClient}
	if ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}

	log.Println("[FCM] Client initialized successfully")
	return c, nil
}

// RateLimited reports whether calls are throttled globally.
func (c *Client) RateLimited() bool {
	return c.limiter != nil
}

// Message is one notification addressed to one device token
type Message struct {
	Token        string
	Title        string
	Body         string
	Data         map[string]string // Custom data payload
	Link         string            // URL to open when notification is clicked
	HighPriority bool
}

// SendResult is the outcome for the message at the same index
type SendResult struct {
	Success   bool
	MessageID string
	ErrorCode string
	Err       error
}

// SendEach sends up to MaxBatchSize messages in a single call. Results are
// positional: results[i] belongs to msgs[i].
func (c *Client) SendEach(ctx context.Context, msgs []Message) ([]SendResult, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if len(msgs) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds FCM limit of %d", len(msgs), MaxBatchSize)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	fcmMsgs := make([]*messaging.Message, len(msgs))
	for i, m := range msgs {
		fcmMsgs[i] = buildMessage(m)
	}

	response, err := c.messagingClient.SendEach(ctx, fcmMsgs)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM batch: %w", err)
	}

	log.Printf("[FCM] Batch sent: %d success, %d failures", response.SuccessCount, response.FailureCount)

	return collectResults(len(msgs), response.Responses), nil
}

// collectResults maps responses to messages by index. A message without a
// response is reported as an unknown failure.
func collectResults(n int, responses []*messaging.SendResponse) []SendResult {
	results := make([]SendResult, n)
	for i := range results {
		if i >= len(responses) || responses[i] == nil {
			results[i] = SendResult{ErrorCode: CodeUnknown, Err: errMissingResponse}
			continue
		}
		resp := responses[i]
		if resp.Success {
			results[i] = SendResult{Success: true, MessageID: resp.MessageID}
			continue
		}
		results[i] = SendResult{ErrorCode: ErrorCode(resp.Error), Err: resp.Error}
	}
	return results
}

// ErrorCode maps an FCM send error to its stable error code string
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsUnregistered(err):
		return CodeUnregistered
	case messaging.IsInvalidArgument(err):
		return CodeInvalidArgument
	case messaging.IsUnavailable(err):
		return CodeUnavailable
	case messaging.IsQuotaExceeded(err):
		return CodeQuotaExceeded
	case messaging.IsSenderIDMismatch(err):
		return CodeSenderIDMismatch
	case messaging.IsThirdPartyAuthError(err):
		return CodeThirdPartyAuth
	}
	return CodeUnknown
}

func buildMessage(m Message) *messaging.Message {
	androidPriority, apnsPriority, urgency := "normal", "5", "normal"
	if m.HighPriority {
		androidPriority, apnsPriority, urgency = "high", "10", "high"
	}

	webpush := &messaging.WebpushConfig{
		Headers: map[string]string{"Urgency": urgency},
		Notification: &messaging.WebpushNotification{
			Title: m.Title,
			Body:  m.Body,
			Icon:  "/icon-192.svg",
		},
	}
	// FCM rejects non-HTTPS links with invalid-argument, which would look like a dead token
	if strings.HasPrefix(m.Link, "https://") {
		webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: m.Link}
	}

	return &messaging.Message{
		Token: m.Token,
		Notification: &messaging.Notification{
			Title: m.Title,
			Body:  m.Body,
		},
		Data:    m.Data,
		Android: &messaging.AndroidConfig{Priority: androidPriority},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
		},
		Webpush: webpush,
	}
}
