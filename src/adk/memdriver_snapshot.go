package adk

import (
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
)

type snapshotRecord struct {
	Values map[string]any   `bson:"values"`
	Rows   []map[string]any `bson:"rows,omitempty"`
}

type snapshotCompany struct {
	Records map[string][]snapshotRecord `bson:"records"`
}

type snapshotDoc struct {
	Companies map[string]snapshotCompany `bson:"companies"`
}

// SaveSnapshot writes every company dataset to a single BSON file.
// Values are keyed by field symbol so snapshots survive identifier
// reassignment across processes.
func (d *MemDriver) SaveSnapshot(path string) (err error) {
	d.mu.Lock()
	doc := snapshotDoc{Companies: make(map[string]snapshotCompany, len(d.companies))}
	for companyPath, ds := range d.companies {
		sc := snapshotCompany{Records: make(map[string][]snapshotRecord)}
		for entity, recs := range ds.records {
			for _, rec := range recs {
				sr := snapshotRecord{Values: d.symbolValuesLocked(rec.values)}
				for _, row := range rec.rows {
					sr.Rows = append(sr.Rows, d.symbolValuesLocked(row.values))
				}
				sc.Records[entity] = append(sc.Records[entity], sr)
			}
		}
		doc.Companies[companyPath] = sc
	}
	d.mu.Unlock()

	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating snapshot file %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("error writing snapshot file %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot replaces all company datasets with the contents of a BSON
// snapshot file. Entities must be defined before loading; unknown field
// symbols are an error, not skipped.
func (d *MemDriver) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading snapshot file %s: %w", path, err)
	}

	var doc snapshotDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("error decoding snapshot file %s: %w", path, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	companies := make(map[string]*dataset, len(doc.Companies))
	for companyPath, sc := range doc.Companies {
		ds := &dataset{records: make(map[string][]*memRecord)}
		for entity, srs := range sc.Records {
			def, ok := d.entities[entity]
			if !ok {
				return fmt.Errorf("snapshot references undefined entity %s", entity)
			}
			for _, sr := range srs {
				rec := &memRecord{values: make(map[FieldID]any)}
				if err := d.fillSnapshotLocked(rec.values, entity, sr.Values); err != nil {
					return err
				}
				for _, rv := range sr.Rows {
					row := &memRecord{values: make(map[FieldID]any)}
					if err := d.fillSnapshotLocked(row.values, def.RowEntity, rv); err != nil {
						return err
					}
					rec.rows = append(rec.rows, row)
				}
				ds.records[entity] = append(ds.records[entity], rec)
			}
		}
		companies[companyPath] = ds
	}

	d.companies = companies
	d.active = nil
	return nil
}

func (d *MemDriver) symbolValuesLocked(values map[FieldID]any) map[string]any {
	out := make(map[string]any, len(values))
	for id, v := range values {
		out[d.fields[id].symbol] = v
	}
	return out
}

func (d *MemDriver) fillSnapshotLocked(dst map[FieldID]any, entity string, values map[string]any) error {
	for symbol, v := range values {
		id, ok := d.fieldBySymbol[symbol]
		if !ok || d.fields[id].entity != entity {
			return fmt.Errorf("snapshot field %s is not a valid field of %s", symbol, entity)
		}
		cv, err := coerceValue(d.fields[id].typ, fromBSONValue(v))
		if err != nil {
			return fmt.Errorf("snapshot field %s: %w", symbol, err)
		}
		dst[id] = cv
	}
	return nil
}

// fromBSONValue maps BSON decode artifacts back to the driver's value
// types: DateTime to time.Time, integer widths to their Go forms.
func fromBSONValue(v any) any {
	switch n := v.(type) {
	case primitive.DateTime:
		return n.Time().UTC()
	case time.Time:
		return n.UTC()
	default:
		return v
	}
}
