package coordstore

import (
	"encoding/json"
	"time"

	"github.com/etcdmq/etcdmq/internal/pkg/utils/errors"
)

// NodeValue is the decoded state of one node.
type NodeValue struct {
	// Data is the opaque payload, empty for a node that was created but never set.
	Data []byte
	// Version is the etcd ModRevision of the node, used in conditional Set/Delete.
	Version int64
	// Created is the creation time recorded in the node envelope,
	// etcd itself keeps no wall-clock time per key.
	Created time.Time
}

func (v NodeValue) Empty() bool {
	return len(v.Data) == 0
}

// envelope is the stored representation of a node value.
// The payload stays opaque, base64 comes from the standard JSON encoding of []byte.
type envelope struct {
	Created time.Time `json:"created"`
	Data    []byte    `json:"data,omitempty"`
}

func encodeValue(created time.Time, data []byte) (string, error) {
	out, err := json.Marshal(envelope{Created: created.UTC(), Data: data})
	if err != nil {
		return "", errors.PrefixError(err, "cannot encode node value")
	}
	return string(out), nil
}

func decodeValue(raw []byte) (created time.Time, data []byte, err error) {
	var v envelope
	if err := json.Unmarshal(raw, &v); err != nil {
		return time.Time{}, nil, errors.PrefixError(err, "cannot decode node value")
	}
	return v.Created, v.Data, nil
}
