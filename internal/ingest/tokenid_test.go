package ingest

import (
	"testing"

	"poolSim/internal/model"
)

func TestTokenIDStableAcrossRuns(t *testing.T) {
	const (
		ownerA = "0x1111111111111111111111111111111111111111"
		ownerB = "0x2222222222222222222222222222222222222222"
	)

	mintA := assignTokenID(model.MintEventData{Owner: ownerA, TickLower: -120, TickUpper: 120}).(model.MintEventData)
	mintB := assignTokenID(model.MintEventData{Owner: ownerB, TickLower: -60, TickUpper: 60}).(model.MintEventData)

	// A run resuming from a checkpoint sees B's burn before any mint.
	burnB := assignTokenID(model.BurnEventData{Owner: ownerB, TickLower: -60, TickUpper: 60}).(model.BurnEventData)

	if burnB.TokenID != mintB.TokenID {
		t.Fatalf("burn must keep the mint's token id: %d != %d", burnB.TokenID, mintB.TokenID)
	}
	if burnB.TokenID == mintA.TokenID {
		t.Fatalf("distinct positions must not share a token id")
	}

	collectB := assignTokenID(model.CollectEventData{Owner: ownerB, TickLower: -60, TickUpper: 60}).(model.CollectEventData)
	if collectB.TokenID != mintB.TokenID {
		t.Fatalf("collect must keep the mint's token id: %d != %d", collectB.TokenID, mintB.TokenID)
	}
}

func TestPositionTokenID(t *testing.T) {
	base := positionTokenID("0xAbCd", -120, 120)

	if positionTokenID("0xabcd", -120, 120) != base {
		t.Fatalf("token id must ignore owner casing")
	}
	if positionTokenID("0xAbCd", -60, 60) == base {
		t.Fatalf("distinct tick ranges must get distinct token ids")
	}
	if positionTokenID("0xffff", -120, 120) == base {
		t.Fatalf("distinct owners must get distinct token ids")
	}
}
