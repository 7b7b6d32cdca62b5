// Package events declares the topics shared between the progress tracker and
// the sequence player.
package events

import "github.com/ivlev/scrollstory/internal/channel"

// Progress reports how far the trigger region has been scrolled through.
// Percentage is always within [0, 100].
type Progress struct {
	Percentage float64 `json:"percentage"`
}

// ScrollUpdate carries Progress from the tracker to its consumers.
var ScrollUpdate = channel.NewTopic[Progress]("scrollUpdate")
