package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

func TestRunCodecRoundTrip(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: Stamp(),
		RunID:           "run-1",
		CreatedAtUTC:    "2026-08-30T10:00:00Z",
		Objectives:      []string{"structural", "energy"},
		PopulationSize:  50,
		Generations:     100,
		Seed:            7,
		BestGenome:      testGenome("g3-i2"),
		BestFitness:     model.FitnessVector{0.8, 0.6},
	}

	data, err := EncodeRun(run)
	require.NoError(t, err)

	got, err := DecodeRun(data)
	require.NoError(t, err)
	require.Equal(t, run, got)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{RunID: "run-1"}
	run.SchemaVersion = CurrentSchemaVersion + 1
	run.CodecVersion = CurrentCodecVersion

	data, err := EncodeRun(run)
	require.NoError(t, err)

	_, err = DecodeRun(data)
	require.ErrorIs(t, err, ErrVersionMismatch)

	design := model.DesignRecord{ID: "run-1/a"}
	design.SchemaVersion = CurrentSchemaVersion
	design.CodecVersion = CurrentCodecVersion + 1

	data, err = EncodeDesign(design)
	require.NoError(t, err)

	_, err = DecodeDesign(data)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestNewStoreRejectsUnknownBackend(t *testing.T) {
	_, err := NewStore("redis", "")
	require.Error(t, err)

	store, err := NewStore("", "")
	require.NoError(t, err)
	require.NoError(t, CloseIfSupported(store))
}
