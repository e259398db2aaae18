package tools

import (
	"context"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// MediaLibrary resolves media attachments for a topic. The S3-backed
// implementation lives in internal/storage.
type MediaLibrary interface {
	LookupImage(ctx context.Context, topic string) (domain.Media, error)
	LookupVideo(ctx context.Context, topic string) (domain.Media, error)
}

// StaticMediaLibrary serves fixed sample media; used when no object storage
// is configured.
type StaticMediaLibrary struct{}

func (StaticMediaLibrary) LookupImage(ctx context.Context, topic string) (domain.Media, error) {
	return domain.Media{
		Content:  "https://eskipaper.com/images/harry-potter-3.jpg",
		MimeType: "image/jpeg",
		Label:    topic,
	}, nil
}

func (StaticMediaLibrary) LookupVideo(ctx context.Context, topic string) (domain.Media, error) {
	return domain.Media{
		Content:  "https://www.youtube.com/watch?v=YsqcODOEO-M",
		MimeType: "video/mp4",
		Label:    "Harry Potter Trailer",
	}, nil
}

type topicArgs struct {
	Topic string `json:"topic"`
}

func topicSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{"type": "string", "description": "The topic to get media for"},
		},
		"required": []string{"topic"},
	}
}

// NewGetImageTool returns an image related to a topic
func NewGetImageTool(library MediaLibrary) Tool {
	return NewTyped("GetImage", "Get image related to the topic.",
		topicSchema(),
		func(ctx context.Context, args topicArgs) (any, error) {
			return library.LookupImage(ctx, args.Topic)
		})
}

// NewGetVideoTool returns a video related to a topic
func NewGetVideoTool(library MediaLibrary) Tool {
	return NewTyped("GetVideo", "Get video related to the topic.",
		topicSchema(),
		func(ctx context.Context, args topicArgs) (any, error) {
			return library.LookupVideo(ctx, args.Topic)
		})
}
