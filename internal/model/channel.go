package model

// ChannelID is the stable numeric id of a logical sensor channel on a node.
// Ids are assigned per node in its configuration and presented to the
// network once at startup.
type ChannelID uint8

// Kind describes what a channel measures and how its values compare.
type Kind string

const (
	KindDoor        Kind = "door"        // bool, exact-match comparison
	KindMotion      Kind = "motion"      // bool, exact-match comparison
	KindTemperature Kind = "temperature" // float °C or °F, threshold comparison
	KindHumidity    Kind = "humidity"    // float %, averaged then threshold comparison
	KindBattery     Kind = "battery"     // int %, own reporting cadence
)

// Digital reports whether values of this kind compare by equality
// rather than by threshold.
func (k Kind) Digital() bool {
	return k == KindDoor || k == KindMotion
}

// Valid reports whether k is one of the known channel kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDoor, KindMotion, KindTemperature, KindHumidity, KindBattery:
		return true
	}
	return false
}
