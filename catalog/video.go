// Package catalog holds the local video records an upload is attached to.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

type WatermarkArea string

const (
	WatermarkCenter             WatermarkArea = "center"
	WatermarkFixTopLeft         WatermarkArea = "fix_top_left"
	WatermarkFixTopRight        WatermarkArea = "fix_top_right"
	WatermarkFixTopCenter       WatermarkArea = "fix_top_center"
	WatermarkFixBottomLeft      WatermarkArea = "fix_bottom_left"
	WatermarkFixBottomRight     WatermarkArea = "fix_bottom_right"
	WatermarkFixBottomCenter    WatermarkArea = "fix_bottom_center"
	WatermarkAnimateLeftToRight WatermarkArea = "animate_left_to_right"
	WatermarkAnimateTopToBottom WatermarkArea = "animate_top_to_bottom"
)

var WatermarkAreas = []WatermarkArea{
	WatermarkCenter,
	WatermarkFixTopLeft,
	WatermarkFixTopRight,
	WatermarkFixTopCenter,
	WatermarkFixBottomLeft,
	WatermarkFixBottomRight,
	WatermarkFixBottomCenter,
	WatermarkAnimateLeftToRight,
	WatermarkAnimateTopToBottom,
}

func (a WatermarkArea) Valid() bool {
	for _, v := range WatermarkAreas {
		if v == a {
			return true
		}
	}
	return false
}

var ErrInvalidWatermarkArea = errors.New("invalid watermark area")

// Video is a locally managed video. Optional fields are nil when unset so
// they can be passed to the VOD API as null.
type Video struct {
	ID            int64   `json:"id" dynamodbav:"id"`
	Title         string  `json:"title" dynamodbav:"title"`
	Slug          string  `json:"slug" dynamodbav:"slug"`
	VideoID       *string `json:"video_id" dynamodbav:"video_id"`
	ChannelTitle  *string `json:"arvan_channel_title" dynamodbav:"arvan_channel_title"`
	ChannelID     *string `json:"arvan_channel_id" dynamodbav:"arvan_channel_id"`
	Watermark     *string `json:"watermark" dynamodbav:"watermark"`
	WatermarkArea *string `json:"watermark_area" dynamodbav:"watermark_area"`
}

func (v Video) Validate() error {
	if v.ID <= 0 {
		return fmt.Errorf("video id must be positive, got %d", v.ID)
	}
	if v.Title == "" {
		return errors.New("video title is required")
	}
	if v.WatermarkArea != nil && *v.WatermarkArea != "" && !WatermarkArea(*v.WatermarkArea).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidWatermarkArea, *v.WatermarkArea)
	}
	return nil
}

type Finder interface {
	FindVideo(ctx context.Context, id int64) (Video, bool, error)
}

type Store interface {
	Finder
	SaveVideo(ctx context.Context, v Video) error
}
