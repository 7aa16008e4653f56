package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"karmaterra-backend/internal/push/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// dedupWindow is how long an idempotency key is remembered
const dedupWindow = time.Hour

// PushRequest is the Pub/Sub message other services publish to notify a user
type PushRequest struct {
	UserID         string `json:"user_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Link           string `json:"link"`
	ImageURL       string `json:"image_url,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Enqueuer accepts dispatch jobs without blocking
type Enqueuer interface {
	Enqueue(job usecase.DispatchJob) bool
}

type Service struct {
	pubsubClient *pubsub.Client
	queue        Enqueuer
	projectID    string
	topicName    string
	subName      string

	// Deduplication: idempotency keys seen within dedupWindow
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewService(projectID, topicName string, queue Enqueuer, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return newService(client, queue, projectID, topicName), nil
}

func newService(client *pubsub.Client, queue Enqueuer, projectID, topicName string) *Service {
	return &Service{
		pubsubClient: client,
		queue:        queue,
		projectID:    projectID,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
		seen:         make(map[string]time.Time),
		now:          time.Now,
	}
}

// Start blocks receiving messages until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting push ingress with topic: %s, subscription: %s", s.topicName, s.subName)

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		log.Printf("[PubSub] %v", err)
		return
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.handleMessage(msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

// Close releases the Pub/Sub client
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking subscription existence: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking topic existence: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist, cannot create subscription", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	log.Printf("[PubSub] Created subscription: %s", s.subName)
	return sub, nil
}

// handleMessage decodes and enqueues one message. It returns false when the
// message should be redelivered later.
func (s *Service) handleMessage(data []byte) bool {
	var req PushRequest
	if err := json.Unmarshal(data, &req); err != nil {
		// redelivery cannot fix a malformed payload
		log.Printf("[PubSub] Dropping malformed message: %v", err)
		return true
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Title) == "" {
		log.Printf("[PubSub] Dropping message without user_id or title")
		return true
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" && !s.reserve(key) {
		log.Printf("[PubSub] Skipping duplicate message %s for user %s", key, req.UserID)
		return true
	}

	queued := s.queue.Enqueue(usecase.DispatchJob{Request: usecase.SendRequest{
		UserID:   req.UserID,
		Title:    req.Title,
		Body:     req.Body,
		Link:     req.Link,
		ImageURL: req.ImageURL,
	}})
	if !queued {
		if key != "" {
			s.release(key)
		}
		log.Printf("[PubSub] Dispatch queue full, nacking message for user %s", req.UserID)
		return false
	}

	log.Printf("[PubSub] Queued notification for user %s (link=%q)", req.UserID, req.Link)
	return true
}

// reserve records key unless it was seen within dedupWindow. It reports whether
// the caller now owns the key.
func (s *Service) reserve(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if at, ok := s.seen[key]; ok && now.Sub(at) < dedupWindow {
		return false
	}
	for k, at := range s.seen {
		if now.Sub(at) >= dedupWindow {
			delete(s.seen, k)
		}
	}
	s.seen[key] = now
	return true
}

// release forgets key so a redelivery is processed again
func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
}
