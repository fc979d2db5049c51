package tracker

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Field describes one audit-eligible field of a record type: the name
// reported in change notifications and an accessor that reads the field's
// current value off an instance. A Field is built once per record type and
// shared read-only across all snapshot operations for that type.
type Field struct {
	Name string
	Read func(record interface{}) interface{}
}

// Provider supplies audit metadata for record types. TypeOf returns an opaque
// key identifying the record's schema, used only for caching. IdentityOf
// returns the record's stable identity, or the empty string when the record
// has none (such records are not tracked). FieldsOf enumerates the
// audit-eligible fields declared by the record's type.
type Provider interface {
	TypeOf(record interface{}) string
	IdentityOf(record interface{}) string
	FieldsOf(record interface{}) ([]Field, error)
}

// Sink receives one notification per field whose value differs between a
// record's load and its save. Notify is called synchronously from OnSave,
// at most once per detected change; errors are propagated to the save-path
// caller unmodified.
type Sink interface {
	Notify(ctx context.Context, record interface{}, field string, oldValue, newValue interface{}) error
}

type snapshotKey struct {
	typeKey  string
	identity string
	field    string
}

// Tracker detects field-level changes across a record's load/save cycle.
// OnLoad captures the current value of every audited field; OnSave re-reads
// them, consumes the captured snapshots and hands each differing field to the
// sink.
//
// Snapshots for records that are loaded but never saved are retained for the
// lifetime of the process. The tracker relies on load/save symmetry in the
// host application and does not evict on its own.
type Tracker struct {
	provider  Provider
	sink      Sink
	catalog   *Catalog
	snapshots sync.Map // snapshotKey -> captured value
}

func New(provider Provider, sink Sink) *Tracker {
	return &Tracker{
		provider: provider,
		sink:     sink,
		catalog:  NewCatalog(provider),
	}
}

// OnLoad snapshots the audited fields of record. Records without an identity
// are not tracked. A second load before a save overwrites the previous
// snapshot.
func (t *Tracker) OnLoad(record interface{}) error {
	identity := t.provider.IdentityOf(record)
	if identity == "" {
		return nil
	}

	fields, err := t.catalog.FieldsFor(record)
	if err != nil {
		return err
	}

	typeKey := t.provider.TypeOf(record)
	for _, f := range fields {
		t.snapshots.Store(snapshotKey{typeKey: typeKey, identity: identity, field: f.Name}, f.Read(record))
	}

	log.WithFields(log.Fields{
		"record_type": typeKey,
		"identity":    identity,
		"fields":      len(fields),
	}).Debug("Captured field snapshots on load")

	return nil
}

// OnSave diffs record against the snapshots captured by the matching OnLoad
// and notifies the sink once per changed field, synchronously, before
// returning. Each snapshot is consumed whether or not the value changed, so a
// second save without an intervening load is a no-op. Fields with no pending
// snapshot are skipped silently.
//
// A sink error aborts the remaining diff processing and is returned to the
// caller; snapshots consumed before the failure stay consumed.
func (t *Tracker) OnSave(ctx context.Context, record interface{}) error {
	identity := t.provider.IdentityOf(record)
	if identity == "" {
		return nil
	}

	fields, err := t.catalog.FieldsFor(record)
	if err != nil {
		return err
	}

	typeKey := t.provider.TypeOf(record)
	for _, f := range fields {
		oldValue, ok := t.snapshots.LoadAndDelete(snapshotKey{typeKey: typeKey, identity: identity, field: f.Name})
		if !ok {
			continue
		}

		newValue := f.Read(record)
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		log.WithFields(log.Fields{
			"record_type": typeKey,
			"identity":    identity,
			"field":       f.Name,
		}).Debug("Detected field change on save")

		if err := t.sink.Notify(ctx, record, f.Name, oldValue, newValue); err != nil {
			return fmt.Errorf("failed to notify change of %s.%s: %w", typeKey, f.Name, err)
		}
	}

	return nil
}
