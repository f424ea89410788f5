package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestBlocked(t *testing.T) {
	testCases := []struct {
		resourceType proto.NetworkResourceType
		blocked      bool
	}{
		{proto.NetworkResourceTypeImage, true},
		{proto.NetworkResourceTypeFont, true},
		{proto.NetworkResourceTypeMedia, true},
		{proto.NetworkResourceTypeStylesheet, true},
		{proto.NetworkResourceTypeDocument, false},
		{proto.NetworkResourceTypeScript, false},
		{proto.NetworkResourceTypeXHR, false},
		{proto.NetworkResourceTypeFetch, false},
		{proto.NetworkResourceTypeWebSocket, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.resourceType), func(t *testing.T) {
			assert.Equal(t, tc.blocked, Blocked(tc.resourceType))
		})
	}
}
