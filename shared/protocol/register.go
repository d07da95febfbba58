package protocol

import (
	"fmt"

	"github.com/automoto/arrowflight/shared/netcomponents"
	"github.com/leap-fish/necs/esync"
)

// Sync ID constants - ID 1 is reserved by necs for NetworkId
const (
	SyncIDNetArrow       uint = 20
	SyncIDNetArrowEffect uint = 21
	SyncIDNetTransform   uint = 22
	SyncIDNetTarget      uint = 23
)

// Interpolation IDs (uint8 for WithInterpFn)
const (
	InterpIDNetArrow     uint8 = 20
	InterpIDNetTransform uint8 = 22
)

// RegisterComponents registers all network components with necs for serialization.
// Both binaries call it once before any network operations.
func RegisterComponents() error {
	if err := esync.RegisterComponent(
		SyncIDNetArrow,
		netcomponents.NetArrowData{},
		netcomponents.NetArrow,
		esync.WithInterpFn(InterpIDNetArrow, netcomponents.LerpNetArrow),
	); err != nil {
		return fmt.Errorf("register NetArrow: %w", err)
	}

	// effect identity is written once; nothing to interpolate
	if err := esync.RegisterComponent(
		SyncIDNetArrowEffect,
		netcomponents.NetArrowEffectData{},
		netcomponents.NetArrowEffect,
	); err != nil {
		return fmt.Errorf("register NetArrowEffect: %w", err)
	}

	if err := esync.RegisterComponent(
		SyncIDNetTransform,
		netcomponents.NetTransformData{},
		netcomponents.NetTransform,
		esync.WithInterpFn(InterpIDNetTransform, netcomponents.LerpNetTransform),
	); err != nil {
		return fmt.Errorf("register NetTransform: %w", err)
	}

	if err := esync.RegisterComponent(
		SyncIDNetTarget,
		netcomponents.NetTargetData{},
		netcomponents.NetTarget,
	); err != nil {
		return fmt.Errorf("register NetTarget: %w", err)
	}

	return nil
}
