// Package gochannel provides the in-memory watermill channel used for tests
// and local development.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const outputBuffer = 1000

// CreateChannel returns an in-process publisher/subscriber pair backed by a
// single GoChannel instance, so events published by one embark component are
// visible to the others in the same process.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: outputBuffer,
		},
		logger,
	)

	return pubSub, pubSub
}
