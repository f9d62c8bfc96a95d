package persistence

import (
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/kestrel-agent/kestrel/internal/eventlog"
)

// archiveVersion is the conversation archive's meta.json version field
// (spec.md §6: "meta.json is {id, name, created, lastUsed, version=2}").
const archiveVersion = 2

// ConversationMeta is the small header persisted alongside a
// conversation's event log.
type ConversationMeta struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	LastUsed time.Time `json:"lastUsed"`
	Version  int       `json:"version"`
}

func metaPath(conversationID string) string {
	return path.Join(conversationID, "meta.json")
}

func eventsPath(conversationID string) string {
	return path.Join(conversationID, "events.jsonl")
}

// legacyArchivePath is where a v1 fallback — a single JSON file
// carrying a checkpoint object rather than a {meta.json, events.jsonl}
// directory — is looked for, per spec.md §6.
func legacyArchivePath(conversationID string) string {
	return conversationID + ".json"
}

// SaveConversation writes a conversation's archive: meta.json (with
// Version stamped to archiveVersion) and events.jsonl (the event log's
// own JSONL wire format), each written atomically.
func SaveConversation(store BlobStore, conversationID, name string, events *eventlog.Log, created, lastUsed time.Time) error {
	meta := ConversationMeta{
		ID:       conversationID,
		Name:     name,
		Created:  created,
		LastUsed: lastUsed,
		Version:  archiveVersion,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("persistence: encode conversation meta: %w", err)
	}
	if err := store.WriteFile(metaPath(conversationID), metaBytes); err != nil {
		return err
	}

	eventsJSONL, err := events.ToJSONL()
	if err != nil {
		return fmt.Errorf("persistence: encode conversation events: %w", err)
	}
	return store.WriteFile(eventsPath(conversationID), eventsJSONL)
}

// LoadConversation reads a conversation archive. If the {meta.json,
// events.jsonl} pair is absent, it falls back to a v1 single-file
// checkpoint at conversationID+".json" and migrates it in place
// (see migrate.go); the returned meta in that case carries
// Version == archiveVersion, as the archive is now in the current
// shape regardless of what was read.
func LoadConversation(store BlobStore, conversationID string, now func() time.Time) (ConversationMeta, *eventlog.Log, error) {
	if store.Exists(metaPath(conversationID)) && store.Exists(eventsPath(conversationID)) {
		metaBytes, err := store.ReadFile(metaPath(conversationID))
		if err != nil {
			return ConversationMeta{}, nil, err
		}
		var meta ConversationMeta
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			return ConversationMeta{}, nil, fmt.Errorf("persistence: decode conversation meta: %w", err)
		}

		eventsBytes, err := store.ReadFile(eventsPath(conversationID))
		if err != nil {
			return ConversationMeta{}, nil, err
		}
		log, err := eventlog.FromJSONL(eventsBytes, now)
		if err != nil {
			return ConversationMeta{}, nil, err
		}
		return meta, log, nil
	}

	if store.Exists(legacyArchivePath(conversationID)) {
		raw, err := store.ReadFile(legacyArchivePath(conversationID))
		if err != nil {
			return ConversationMeta{}, nil, err
		}
		meta, log, err := MigrateLegacyCheckpoint(raw, now)
		if err != nil {
			return ConversationMeta{}, nil, fmt.Errorf("persistence: migrate v1 conversation %s: %w", conversationID, err)
		}
		meta.ID = conversationID
		meta.Version = archiveVersion
		return meta, log, nil
	}

	return ConversationMeta{}, nil, fmt.Errorf("persistence: no archive found for conversation %s", conversationID)
}
