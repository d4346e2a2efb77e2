package objects

type ObservationFeature = uint8

const (
	FeatureTypeID ObservationFeature = iota
	FeatureGroup
	FeatureFrozen
	FeatureOrientation
	FeatureColor
	featureCount
)

// InventoryFeatureOffset is added to an item id to form its feature id.
const InventoryFeatureOffset = featureCount

type ObservationToken struct {
	Feature ObservationFeature `json:"feature"`
	Value   uint8              `json:"value"`
}

// ObsFeatures projects the agent into observation tokens. The slice is
// freshly built on every call.
func (a *Agent) ObsFeatures() []ObservationToken {
	items := a.InventoryItems()
	out := make([]ObservationToken, 0, int(featureCount)+len(items))
	frozen := uint8(0)
	if a.Frozen != 0 {
		frozen = 1
	}
	out = append(out,
		ObservationToken{Feature: FeatureTypeID, Value: a.TypeID},
		ObservationToken{Feature: FeatureGroup, Value: a.Group},
		ObservationToken{Feature: FeatureFrozen, Value: frozen},
		ObservationToken{Feature: FeatureOrientation, Value: uint8(a.Orientation)},
		ObservationToken{Feature: FeatureColor, Value: a.Color},
	)
	for _, item := range items {
		out = append(out, ObservationToken{
			Feature: InventoryFeatureOffset + item,
			Value:   clampByte(a.inventory[item]),
		})
	}
	return out
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
