package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// Resume unblocks an ordering key after a failed publish.
	Resume(key string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicPublishers hands out one ordered publisher per topic and stops them
// all on Close.
type topicPublishers struct {
	mu     sync.Mutex
	source pubSubClient
	byName map[string]*gcpPublisher
}

func newTopicPublishers(source pubSubClient) *topicPublishers {
	return &topicPublishers{source: source, byName: make(map[string]*gcpPublisher)}
}

func (t *topicPublishers) forTopic(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.byName[topic]; ok {
		return p
	}
	raw := t.source.Publisher(topic)
	if raw == nil {
		return nil
	}
	raw.EnableMessageOrdering = true
	p := &gcpPublisher{Publisher: raw}
	t.byName[topic] = p
	return p
}

func (t *topicPublishers) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, p := range t.byName {
		p.Stop()
		delete(t.byName, name)
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

func (p *gcpPublisher) Resume(key string) {
	if p == nil || p.Publisher == nil || key == "" {
		return
	}
	p.Publisher.ResumePublish(key)
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
