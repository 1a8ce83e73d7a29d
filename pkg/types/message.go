// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// MessageType names a message exchanged between the worker and its host.
type MessageType string

// Messages the host sends to the worker.
const (
	// MsgQueue adds note paths to the worker's queue.
	MsgQueue MessageType = "queue"

	// MsgDebug toggles verbose diagnostics.
	MsgDebug MessageType = "debug"

	// MsgMetadataReply answers a metadata request for one path.
	MsgMetadataReply MessageType = "metadata-reply"
)

// Messages the worker sends to the host.
const (
	// MsgMetadataRequest asks the host for the metadata of one path.
	MsgMetadataRequest MessageType = "metadata-request"

	// MsgRecordUpdated carries a freshly extracted record.
	MsgRecordUpdated MessageType = "record-updated"

	// MsgPathFinished reports that a path was processed, record or not.
	MsgPathFinished MessageType = "path-finished"

	// MsgBatchComplete reports that the queue drained.
	MsgBatchComplete MessageType = "batch-complete"
)

// Message is the envelope for every message on the worker channel. Only the
// fields relevant to Type are set.
type Message struct {
	Type MessageType `json:"type"`

	// Paths is set on queue messages.
	Paths []string `json:"paths,omitempty"`

	// Debug is set on debug messages.
	Debug bool `json:"debug,omitempty"`

	// Path is set on every per-path message.
	Path string `json:"path,omitempty"`

	// Metadata is the reply payload; nil is an explicit "no metadata".
	Metadata Metadata `json:"metadata,omitempty"`

	// File describes the note on metadata replies.
	File *FileAttrs `json:"file,omitempty"`

	// Record is set on record-updated messages.
	Record *Record `json:"record,omitempty"`
}

// QueueMessage builds a queue message.
func QueueMessage(paths ...string) Message {
	return Message{Type: MsgQueue, Paths: paths}
}

// DebugMessage builds a debug toggle message.
func DebugMessage(on bool) Message {
	return Message{Type: MsgDebug, Debug: on}
}

// MetadataRequest builds a metadata request for path.
func MetadataRequest(path string) Message {
	return Message{Type: MsgMetadataRequest, Path: path}
}

// MetadataReply builds the reply to a metadata request. meta may be nil.
func MetadataReply(path string, meta Metadata, file FileAttrs) Message {
	return Message{Type: MsgMetadataReply, Path: path, Metadata: meta, File: &file}
}

// RecordUpdated builds a record-updated message for rec.
func RecordUpdated(rec *Record) Message {
	return Message{Type: MsgRecordUpdated, Path: rec.SourcePath, Record: rec}
}

// PathFinished builds a path-finished message.
func PathFinished(path string) Message {
	return Message{Type: MsgPathFinished, Path: path}
}

// BatchComplete builds a batch-complete message.
func BatchComplete() Message {
	return Message{Type: MsgBatchComplete}
}
