// Package wire holds the topic contract and payload shapes shared with the
// remote detector.
package wire

import "github.com/catdetector/companion/pkg/core"

// Topic constants matching the detector's MQTT contract.
const (
	TopicImageLatest     = "cat_detector/image/latest"
	TopicDetectionStatus = "cat_detector/status/detection"
	TopicServoControl    = "servo/control"
	TopicScriptConfigSet = "cat_detector/config/script/set"
	TopicZonesConfigSet  = "cat_detector/config/zones/set"
)

// InboundTopics are subscribed on every successful connect.
var InboundTopics = []string{TopicImageLatest, TopicDetectionStatus}

// Coordinate is a point flattened to an [x, y] pair.
type Coordinate [2]int

// ZonesPayload is the body of TopicZonesConfigSet.
type ZonesPayload struct {
	ActivationAreas [][]Coordinate   `json:"activation_areas"`
	CropRegion      *core.CropRegion `json:"crop_region"`
}

// ScriptPayload is the body of TopicScriptConfigSet. Absent fields are not changed by the peer.
type ScriptPayload struct {
	Confidence *float64 `json:"confidence,omitempty"`
	Cooldown   *int     `json:"cooldown,omitempty"`
}
