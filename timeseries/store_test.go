package timeseries

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bikewatch-nyc/gbfs-analytics/gbfs"
)

func changeSetAt(ts float64, entity string, data, meta gbfs.Fields, isNew bool) *ChangeSet {
	return &ChangeSet{
		Feed:       "station_status",
		CapturedAt: Timestamp(ts),
		Keys:       []string{entity},
		Entities: map[string]*EntityChange{
			entity: {
				Entity:          entity,
				Timestamp:       Timestamp(ts),
				New:             isNew,
				Data:            data,
				Metadata:        meta,
				MetadataChanged: isNew,
			},
		},
	}
}

func TestIngestSamplesDataEveryPoll(t *testing.T) {
	store := NewStore("station_status")
	meta := gbfs.Fields{"name": gbfs.String("W 52 St & 11 Ave")}

	for i, ts := range []float64{100, 160, 220} {
		data := gbfs.Fields{"num_bikes_available": gbfs.Number(float64(5 + i))}
		cs := changeSetAt(ts, "station-1", data, meta, i == 0)
		if errs := store.Ingest(cs); len(errs) != 0 {
			t.Fatalf("ingest %d returned errors: %v", i, errs)
		}
	}

	dataRecs, metaRecs, err := store.History("station-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(dataRecs) != 3 {
		t.Errorf("expected 3 data records, got %d", len(dataRecs))
	}
	if len(metaRecs) != 1 {
		t.Errorf("expected 1 metadata record for unchanged metadata, got %d", len(metaRecs))
	}
	for i := 1; i < len(dataRecs); i++ {
		if dataRecs[i].Timestamp <= dataRecs[i-1].Timestamp {
			t.Errorf("data timestamps not strictly increasing at %d: %v then %v",
				i, dataRecs[i-1].Timestamp, dataRecs[i].Timestamp)
		}
	}
}

func TestIngestAppendsMetadataOnlyOnChange(t *testing.T) {
	store := NewStore("station_status")
	data := gbfs.Fields{"num_bikes_available": gbfs.Number(5)}

	ticks := []struct {
		ts   float64
		name string
	}{
		{100, "Old Name"},
		{160, "Old Name"},
		{220, "New Name"},
		{280, "New Name"},
	}
	for i, tick := range ticks {
		meta := gbfs.Fields{"name": gbfs.String(tick.name)}
		cs := changeSetAt(tick.ts, "station-1", data, meta, i == 0)
		cs.Entities["station-1"].MetadataChanged = i == 0 || tick.name != ticks[i-1].name
		if errs := store.Ingest(cs); len(errs) != 0 {
			t.Fatalf("ingest %d returned errors: %v", i, errs)
		}
	}

	dataRecs, metaRecs, err := store.History("station-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(metaRecs) != 2 {
		t.Fatalf("expected 2 metadata versions, got %d", len(metaRecs))
	}
	if metaRecs[0].Version != 0 || metaRecs[1].Version != 1 {
		t.Errorf("expected versions 0 and 1, got %d and %d", metaRecs[0].Version, metaRecs[1].Version)
	}
	// data records written before the rename reference version 0, after it
	// version 1
	wantVersions := []int{0, 0, 1, 1}
	for i, rec := range dataRecs {
		if rec.MetadataVersion != wantVersions[i] {
			t.Errorf("data record %d: expected metadata version %d, got %d", i, wantVersions[i], rec.MetadataVersion)
		}
	}
}

func TestMetadataStableAfterFieldDrop(t *testing.T) {
	table := BuildFieldTable(
		[]string{"name", "capacity"},
		[]string{"num_bikes_available"},
	)
	full := gbfs.Fields{
		"name":                gbfs.String("A"),
		"capacity":            gbfs.Number(39),
		"num_bikes_available": gbfs.Number(5),
	}
	reduced := gbfs.Fields{
		"name":                gbfs.String("A"),
		"num_bikes_available": gbfs.Number(5),
	}
	snaps := []*gbfs.RawSnapshot{
		rawSnapshot(100, map[string]gbfs.Fields{"station-1": full}, []string{"station-1"}),
		rawSnapshot(200, map[string]gbfs.Fields{"station-1": reduced}, []string{"station-1"}),
		rawSnapshot(300, map[string]gbfs.Fields{"station-1": reduced}, []string{"station-1"}),
	}

	store := NewStore("station_status")
	var prev *gbfs.RawSnapshot
	for i, snap := range snaps {
		cs, cerrs := Classify(prev, snap, table)
		if len(cerrs) != 0 {
			t.Fatalf("classify tick %d: %v", i, cerrs)
		}
		if errs := store.Ingest(cs); len(errs) != 0 {
			t.Fatalf("ingest tick %d: %v", i, errs)
		}
		prev = snap
	}

	dataRecs, metaRecs, err := store.History("station-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(dataRecs) != 3 {
		t.Errorf("expected a data record per tick, got %d", len(dataRecs))
	}
	// the drop itself is a metadata change; the steady ticks after it are not
	if len(metaRecs) != 2 {
		t.Fatalf("expected 2 metadata versions, got %d", len(metaRecs))
	}
	if got := metaRecs[1].Fields["capacity"]; got.Kind != gbfs.KindMissing {
		t.Errorf("dropped metadata field must be recorded as missing, got kind %d", got.Kind)
	}
	if dataRecs[2].MetadataVersion != 1 {
		t.Errorf("post-drop samples must reference the drop version, got %d", dataRecs[2].MetadataVersion)
	}
}

func TestIngestRejectsDuplicateTimestamp(t *testing.T) {
	store := NewStore("station_status")
	data := gbfs.Fields{"num_bikes_available": gbfs.Number(5)}
	meta := gbfs.Fields{"name": gbfs.String("A")}

	if errs := store.Ingest(changeSetAt(100, "station-1", data, meta, true)); len(errs) != 0 {
		t.Fatalf("first ingest returned errors: %v", errs)
	}
	errs := store.Ingest(changeSetAt(100, "station-1", data, meta, false))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for duplicate timestamp, got %d", len(errs))
	}
	var dup *DuplicateTimestampError
	if !errors.As(errs[0], &dup) {
		t.Fatalf("expected DuplicateTimestampError, got %T", errs[0])
	}
	if dup.Entity != "station-1" {
		t.Errorf("expected entity station-1, got %s", dup.Entity)
	}
	if dataRecs, _, _ := store.History("station-1"); len(dataRecs) != 1 {
		t.Errorf("rejected record must not be appended, have %d records", len(dataRecs))
	}
}

func TestIngestSamplesWhenReportTimeStalls(t *testing.T) {
	// stations report on their own cadence; last_reported routinely repeats
	// across polls and must never suppress a sample
	table := BuildFieldTable(
		[]string{"station_id"},
		[]string{"num_bikes_available", "last_reported"},
	)
	body1 := []byte(`{"data": {"stations": [{"station_id": "station-1", "num_bikes_available": 5, "last_reported": 90}]}}`)
	body2 := []byte(`{"data": {"stations": [{"station_id": "station-1", "num_bikes_available": 3, "last_reported": 90}]}}`)

	snap1, err := gbfs.ParseSnapshot("nyc", "station_status", body1, 100)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	snap2, err := gbfs.ParseSnapshot("nyc", "station_status", body2, 200)
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}

	store := NewStore("station_status")
	cs1, cerrs := Classify(nil, snap1, table)
	if len(cerrs) != 0 {
		t.Fatalf("classify tick 1: %v", cerrs)
	}
	if errs := store.Ingest(cs1); len(errs) != 0 {
		t.Fatalf("ingest tick 1: %v", errs)
	}
	cs2, cerrs := Classify(snap1, snap2, table)
	if len(cerrs) != 0 {
		t.Fatalf("classify tick 2: %v", cerrs)
	}
	if errs := store.Ingest(cs2); len(errs) != 0 {
		t.Fatalf("ingest tick 2: %v", errs)
	}

	dataRecs, _, err := store.History("station-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(dataRecs) != 2 {
		t.Fatalf("expected a record per tick, got %d", len(dataRecs))
	}
	if dataRecs[0].Timestamp != 100 || dataRecs[1].Timestamp != 200 {
		t.Errorf("records must be ordered by capture time, got %v and %v",
			dataRecs[0].Timestamp, dataRecs[1].Timestamp)
	}
	if got := dataRecs[1].Fields["num_bikes_available"]; got.Num != 3 {
		t.Errorf("second sample lost: expected 3, got %v", got.Num)
	}
}

func TestDataAtPicksLatestAtOrBefore(t *testing.T) {
	store := NewStore("station_status")
	meta := gbfs.Fields{"name": gbfs.String("A")}
	for i, ts := range []float64{100, 200, 300} {
		data := gbfs.Fields{"num_bikes_available": gbfs.Number(float64(i))}
		if errs := store.Ingest(changeSetAt(ts, "station-1", data, meta, i == 0)); len(errs) != 0 {
			t.Fatalf("ingest: %v", errs)
		}
	}

	tests := []struct {
		name    string
		at      Timestamp
		want    float64
		wantErr bool
	}{
		{name: "exact hit", at: 200, want: 1},
		{name: "between samples", at: 250, want: 1},
		{name: "after newest", at: 999, want: 2},
		{name: "before first", at: 50, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := store.DataAt("station-1", tt.at)
			if tt.wantErr {
				var notFound *NotFoundError
				if !errors.As(err, &notFound) {
					t.Fatalf("expected NotFoundError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DataAt: %v", err)
			}
			if got := rec.Fields["num_bikes_available"].Num; got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFullStateAtMergesDataAndMetadata(t *testing.T) {
	store := NewStore("station_status")
	data := gbfs.Fields{"num_bikes_available": gbfs.Number(7)}
	meta := gbfs.Fields{"name": gbfs.String("W 52 St & 11 Ave"), "capacity": gbfs.Number(39)}
	if errs := store.Ingest(changeSetAt(100, "station-1", data, meta, true)); len(errs) != 0 {
		t.Fatalf("ingest: %v", errs)
	}

	state, err := store.FullStateAt("station-1", 150)
	if err != nil {
		t.Fatalf("FullStateAt: %v", err)
	}
	for _, field := range []string{"num_bikes_available", "name", "capacity"} {
		if _, ok := state[field]; !ok {
			t.Errorf("merged state missing field %s", field)
		}
	}

	if _, err := store.FullStateAt("no-such-station", 150); err == nil {
		t.Error("expected error for never-observed entity")
	} else {
		var unknown *EntityUnknownError
		if !errors.As(err, &unknown) {
			t.Errorf("expected EntityUnknownError, got %T", err)
		}
	}
}

func TestFullStateAtDoesNotMutateHistory(t *testing.T) {
	store := NewStore("station_status")
	data := gbfs.Fields{"num_bikes_available": gbfs.Number(7)}
	meta := gbfs.Fields{"name": gbfs.String("A")}
	if errs := store.Ingest(changeSetAt(100, "station-1", data, meta, true)); len(errs) != 0 {
		t.Fatalf("ingest: %v", errs)
	}

	if _, err := store.FullStateAt("station-1", 150); err != nil {
		t.Fatalf("FullStateAt: %v", err)
	}
	rec, err := store.DataAt("station-1", 150)
	if err != nil {
		t.Fatalf("DataAt: %v", err)
	}
	if _, leaked := rec.Fields["name"]; leaked {
		t.Error("metadata leaked into the stored data record")
	}
}

func TestEntitiesInsertionOrderAndRestart(t *testing.T) {
	store := NewStore("station_status")
	data := gbfs.Fields{"num_bikes_available": gbfs.Number(1)}
	meta := gbfs.Fields{"name": gbfs.String("A")}

	for _, id := range []string{"station-c", "station-a", "station-b"} {
		if errs := store.Ingest(changeSetAt(100, id, data, meta, true)); len(errs) != 0 {
			t.Fatalf("ingest %s: %v", id, errs)
		}
	}

	want := []string{"station-c", "station-a", "station-b"}
	for round := 0; round < 2; round++ {
		var got []string
		for id := range store.Entities() {
			got = append(got, id)
		}
		if len(got) != len(want) {
			t.Fatalf("round %d: expected %d entities, got %d", round, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("round %d: position %d: expected %s, got %s", round, i, want[i], got[i])
			}
		}
	}
}

func TestIngestIsDeterministic(t *testing.T) {
	table := BuildFieldTable(
		[]string{"name", "capacity"},
		[]string{"num_bikes_available", "num_docks_available"},
	)
	sequence := func() []*gbfs.RawSnapshot {
		return []*gbfs.RawSnapshot{
			rawSnapshot(100, map[string]gbfs.Fields{
				"station-1": {"name": gbfs.String("A"), "capacity": gbfs.Number(39), "num_bikes_available": gbfs.Number(5)},
			}, []string{"station-1"}),
			rawSnapshot(200, map[string]gbfs.Fields{
				"station-1": {"name": gbfs.String("A"), "capacity": gbfs.Number(39), "num_bikes_available": gbfs.Number(3)},
				"station-2": {"name": gbfs.String("B"), "capacity": gbfs.Number(12), "num_bikes_available": gbfs.Number(1)},
			}, []string{"station-1", "station-2"}),
			rawSnapshot(300, map[string]gbfs.Fields{
				"station-1": {"name": gbfs.String("A renamed"), "capacity": gbfs.Number(39), "num_bikes_available": gbfs.Number(3)},
				"station-2": {"name": gbfs.String("B"), "capacity": gbfs.Number(12), "num_docks_available": gbfs.Number(11)},
			}, []string{"station-1", "station-2"}),
		}
	}

	feed := func() *Store {
		store := NewStore("station_status")
		var prev *gbfs.RawSnapshot
		for i, snap := range sequence() {
			cs, cerrs := Classify(prev, snap, table)
			if len(cerrs) != 0 {
				t.Fatalf("classify tick %d: %v", i, cerrs)
			}
			if errs := store.Ingest(cs); len(errs) != 0 {
				t.Fatalf("ingest tick %d: %v", i, errs)
			}
			prev = snap
		}
		return store
	}

	first, second := feed(), feed()
	grid := []Timestamp{50, 100, 150, 200, 250, 300, 999}
	for _, entity := range []string{"station-1", "station-2"} {
		for _, at := range grid {
			d1, err1 := first.DataAt(entity, at)
			d2, err2 := second.DataAt(entity, at)
			if (err1 == nil) != (err2 == nil) {
				t.Fatalf("DataAt(%s, %v) diverged: %v vs %v", entity, at, err1, err2)
			}
			if err1 == nil {
				if d1.Timestamp != d2.Timestamp || d1.MetadataVersion != d2.MetadataVersion || !d1.Fields.Equal(d2.Fields) {
					t.Errorf("DataAt(%s, %v) diverged: %+v vs %+v", entity, at, d1, d2)
				}
			}

			m1, err1 := first.MetadataAt(entity, at)
			m2, err2 := second.MetadataAt(entity, at)
			if (err1 == nil) != (err2 == nil) {
				t.Fatalf("MetadataAt(%s, %v) diverged: %v vs %v", entity, at, err1, err2)
			}
			if err1 == nil {
				if m1.Timestamp != m2.Timestamp || m1.Version != m2.Version || !m1.Fields.Equal(m2.Fields) {
					t.Errorf("MetadataAt(%s, %v) diverged: %+v vs %+v", entity, at, m1, m2)
				}
			}

			s1, err1 := first.FullStateAt(entity, at)
			s2, err2 := second.FullStateAt(entity, at)
			if (err1 == nil) != (err2 == nil) {
				t.Fatalf("FullStateAt(%s, %v) diverged: %v vs %v", entity, at, err1, err2)
			}
			if err1 == nil && !s1.Equal(s2) {
				t.Errorf("FullStateAt(%s, %v) diverged: %v vs %v", entity, at, s1, s2)
			}
		}
	}
}

func TestSerializeTo(t *testing.T) {
	store := NewStore("station_status")
	data := gbfs.Fields{"num_bikes_available": gbfs.Number(5)}
	meta := gbfs.Fields{"name": gbfs.String("A")}
	if errs := store.Ingest(changeSetAt(100, "station-1", data, meta, true)); len(errs) != 0 {
		t.Fatalf("ingest: %v", errs)
	}

	var buf bytes.Buffer
	if err := store.SerializeTo(&buf); err != nil {
		t.Fatalf("SerializeTo: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected serialized output")
	}
	for _, want := range []string{"station-1", "num_bikes_available", "name"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("serialized output missing %q", want)
		}
	}
}
