package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type notification struct {
	CrawlID string `json:"crawl_id"`
	Quotes  int    `json:"quotes"`
}

func (n notification) Attributes() map[string]string {
	return map[string]string{"crawl_id": n.CrawlID}
}

func newTestClient(t *testing.T, topics ...string) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	for _, id := range topics {
		_, err := client.CreateTopic(ctx, id)
		require.NoError(t, err)
	}
	return client, srv
}

func TestPublishSendsJSONWithAttributes(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator()) })

	client, srv := newTestClient(t, "crawls")
	pub := New(client)
	defer pub.Close()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	id, err := pub.Publish(ctx, "crawls", notification{CrawlID: "crawl-1", Quotes: 100})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got notification
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, notification{CrawlID: "crawl-1", Quotes: 100}, got)
	assert.Equal(t, "crawl-1", msgs[0].Attributes["crawl_id"])
	assert.Contains(t, msgs[0].Attributes["traceparent"], "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestPublishMissingTopic(t *testing.T) {
	client, _ := newTestClient(t)
	pub := New(client)
	defer pub.Close()

	_, err := pub.Publish(context.Background(), "absent", notification{CrawlID: "x"})
	assert.ErrorContains(t, err, "publish message")
}

func TestPublishValidates(t *testing.T) {
	var nilPub *Publisher
	_, err := nilPub.Publish(context.Background(), "crawls", nil)
	assert.ErrorContains(t, err, "not configured")

	client, _ := newTestClient(t)
	pub := New(client)
	_, err = pub.Publish(context.Background(), "", nil)
	assert.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "crawls", func() {})
	assert.ErrorContains(t, err, "marshal payload")
}

func TestCarrierKeys(t *testing.T) {
	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "v")
	assert.Equal(t, "v", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}
