package lifecycle

import (
	"strings"
	"time"
)

// DocumentEventInput describes the common fields for document lifecycle
// events.
type DocumentEventInput struct {
	Database   string
	Collection string
	DocumentID string
	Source     string
	Fields     []string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildInsertedEvent constructs a normalized event for a first write.
func BuildInsertedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.inserted", input)
}

// BuildSavedEvent constructs a normalized event for a replace or update.
func BuildSavedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.saved", input)
}

// BuildRefreshedEvent constructs a normalized event for a re-fetch.
func BuildRefreshedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.refreshed", input)
}

// BuildDeletedEvent constructs a normalized event for a removal.
func BuildDeletedEvent(input DocumentEventInput) Event {
	return buildDocumentEvent("document.deleted", input)
}

func buildDocumentEvent(verb string, input DocumentEventInput) Event {
	fields := input.Fields
	if len(fields) > 0 {
		fields = append([]string{}, input.Fields...)
	}

	return Event{
		Verb:       verb,
		Database:   strings.TrimSpace(input.Database),
		Collection: strings.TrimSpace(input.Collection),
		DocumentID: strings.TrimSpace(input.DocumentID),
		Source:     strings.TrimSpace(input.Source),
		Fields:     fields,
		Metadata:   cloneMap(input.Metadata),
		OccurredAt: input.OccurredAt,
	}
}
