package storage

import (
	"encoding/json"
	"errors"

	"stdpengine/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version stamped on new records.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeWeights(weights []int32) ([]byte, error) {
	return json.Marshal(weights)
}

func DecodeWeights(data []byte) ([]int32, error) {
	var weights []int32
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, err
	}
	return weights, nil
}

func EncodeHistories(histories []model.HistorySnapshot) ([]byte, error) {
	return json.Marshal(histories)
}

func DecodeHistories(data []byte) ([]model.HistorySnapshot, error) {
	var histories []model.HistorySnapshot
	if err := json.Unmarshal(data, &histories); err != nil {
		return nil, err
	}
	for _, h := range histories {
		if err := checkVersion(h.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return histories, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
