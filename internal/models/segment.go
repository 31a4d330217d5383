package models

import "fmt"

// Segment is one cell of the 48-way (intent x device x time-bucket x geo)
// Cartesian product that partitions a day's synthesized demand.
type Segment struct {
	Intent     IntentTier
	Device     DeviceType
	TimeBucket TimeBucket
	Geo        GeoTier
}

// Key returns a stable, human-readable identifier used as a map key for
// fatigue state and segment metrics. It doubles as the tie-break string for
// any ordering that needs one, since segments are otherwise compared by
// their position in AllSegments.
func (s Segment) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.Intent, s.Device, s.TimeBucket, s.Geo)
}

var (
	allIntents     = []IntentTier{IntentHigh, IntentMedium, IntentLow}
	allDevices     = []DeviceType{DeviceMobile, DeviceDesktop}
	allTimeBuckets = []TimeBucket{TimeMorning, TimeAfternoon, TimeEvening, TimeNight}
	allGeos        = []GeoTier{GeoPrimary, GeoSecondary}
)

// AllSegments enumerates the 48 segments in the canonical order required for
// reproducibility: intent outer, then device, then time bucket, then geo
// inner. The day engine must iterate segments in exactly this order so that
// RNG draws line up identically across implementations and runs.
func AllSegments() []Segment {
	segments := make([]Segment, 0, len(allIntents)*len(allDevices)*len(allTimeBuckets)*len(allGeos))
	for _, intent := range allIntents {
		for _, device := range allDevices {
			for _, tb := range allTimeBuckets {
				for _, geo := range allGeos {
					segments = append(segments, Segment{Intent: intent, Device: device, TimeBucket: tb, Geo: geo})
				}
			}
		}
	}
	return segments
}
