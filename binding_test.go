// binding_test.go: Tests for live bindings
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package datasources

import (
	"testing"
)

// recordChanges collects the new values a binding reports
func recordChanges(b *Binding) *[]interface{} {
	values := &[]interface{}{}
	b.OnChange(func(change BindingChange) {
		*values = append(*values, change.New)
	})
	return values
}

func TestBinding_ResolvesAndFallsBackOnSourceRemove(t *testing.T) {
	editor := newTestEditor(t, Config{})
	addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "Name1"})

	b := editor.Bind("ds1.id1.name", "default")
	if b.Value() != "Name1" || b.State() != BindingResolved {
		t.Fatalf("Value=%v State=%v, want Name1 resolved", b.Value(), b.State())
	}

	editor.DataSources().Remove("ds1")
	if b.Value() != "default" || b.State() != BindingUnresolved {
		t.Errorf("after remove Value=%v State=%v, want default unresolved", b.Value(), b.State())
	}
}

func TestBinding_ResolvesWhenSourceArrives(t *testing.T) {
	editor := newTestEditor(t, Config{})

	b := editor.Bind("ds1.id1.name", "default")
	if b.Value() != "default" || b.State() != BindingUnresolved {
		t.Fatalf("Value=%v State=%v", b.Value(), b.State())
	}
	changes := recordChanges(b)

	addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "Name1"})

	if b.Value() != "Name1" || b.State() != BindingResolved {
		t.Errorf("Value=%v State=%v, want Name1 resolved", b.Value(), b.State())
	}
	if len(*changes) != 1 || (*changes)[0] != "Name1" {
		t.Errorf("changes = %v", *changes)
	}
}

func TestBinding_ResolvesWhenRecordAndFieldArrive(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1")

	b := editor.Bind("ds1[id1]name", "default")
	record, err := source.AddRecord(RecordProps{"id": "id1"})
	if err != nil {
		t.Fatal(err)
	}
	if b.State() != BindingUnresolved {
		t.Error("binding resolved on a record without the field")
	}

	record.Set(map[string]interface{}{"name": "late"})
	if b.Value() != "late" || b.State() != BindingResolved {
		t.Errorf("Value=%v State=%v", b.Value(), b.State())
	}

	record.Unset("name")
	if b.Value() != "default" || b.State() != BindingUnresolved {
		t.Errorf("after unset Value=%v State=%v", b.Value(), b.State())
	}
}

func TestBinding_SetPathMovesSubscriptions(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1",
		RecordProps{"id": "id2", "name": "Name2"},
		RecordProps{"id": "id3", "name": "Name3"})

	b := editor.Bind("ds1.id2.name", "default")
	changes := recordChanges(b)

	b.SetPath("ds1.id3.name")
	if b.Value() != "Name3" {
		t.Fatalf("Value = %v, want Name3", b.Value())
	}
	if len(*changes) != 1 {
		t.Fatalf("changes = %v, want one", *changes)
	}

	source.GetRecord("id2").Set(map[string]interface{}{"name": "ignored"})
	if len(*changes) != 1 {
		t.Errorf("old address still notifies: %v", *changes)
	}
	if editor.Hub().Subscribers(PathTopic("ds1.id2.name")) != 0 {
		t.Error("old field subscription not released")
	}

	source.GetRecord("id3").Set(map[string]interface{}{"name": "seen"})
	if b.Value() != "seen" || len(*changes) != 2 {
		t.Errorf("new address not followed: %v %v", b.Value(), *changes)
	}
	if b.Path() != "ds1.id3.name" {
		t.Errorf("Path() = %q", b.Path())
	}
}

func TestBinding_BatchSetNotifiesOnlyBoundKey(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "A", "other": "B"})

	b := editor.Bind("ds1.id1.name", nil)
	changes := recordChanges(b)
	otherSubs := editor.Hub().Subscribers(PathTopic("ds1.id1.other"))

	source.GetRecord("id1").Set(map[string]interface{}{"name": "X", "other": "Y"})

	if len(*changes) != 1 || (*changes)[0] != "X" {
		t.Errorf("changes = %v, want [X]", *changes)
	}
	if otherSubs != 0 {
		t.Errorf("%d subscribers on an unbound field", otherSubs)
	}
}

func TestBinding_SourceResetFallsBackOnce(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1",
		RecordProps{"id": "a", "name": "A"},
		RecordProps{"id": "b", "name": "B"},
		RecordProps{"id": "c", "name": "C"})

	b := editor.Bind("ds1.b.name", "default")
	changes := recordChanges(b)

	if err := source.Reset(); err != nil {
		t.Fatal(err)
	}

	if len(*changes) != 1 || (*changes)[0] != "default" {
		t.Errorf("changes = %v, want exactly [default]", *changes)
	}
}

func TestBinding_SourceResetKeepsMatchingRecord(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1", RecordProps{"id": "a", "name": "A"})

	b := editor.Bind("ds1.a.name", "default")
	changes := recordChanges(b)

	if err := source.Reset(RecordProps{"id": "a", "name": "A"}); err != nil {
		t.Fatal(err)
	}
	if len(*changes) != 0 {
		t.Errorf("unchanged value reported: %v", *changes)
	}

	if err := source.Reset(RecordProps{"id": "a", "name": "A2"}); err != nil {
		t.Fatal(err)
	}
	if b.Value() != "A2" || len(*changes) != 1 {
		t.Errorf("Value=%v changes=%v", b.Value(), *changes)
	}
}

func TestBinding_RegistryResetFallsBack(t *testing.T) {
	editor := newTestEditor(t, Config{})
	addSource(t, editor, "ds1", RecordProps{"id": "a", "name": "A"})
	addSource(t, editor, "ds2", RecordProps{"id": "a", "name": "A"})

	b := editor.Bind("ds1.a.name", "default")
	changes := recordChanges(b)

	editor.DataSources().Reset()

	if len(*changes) != 1 || b.Value() != "default" {
		t.Errorf("changes = %v, Value = %v", *changes, b.Value())
	}
}

func TestBinding_RecordRemoveFallsBack(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1",
		RecordProps{"id": "a", "name": "A"},
		RecordProps{"id": "b", "name": "B"})

	onA := editor.Bind("ds1.a.name", "default")
	onB := editor.Bind("ds1.b.name", "default")
	changesB := recordChanges(onB)

	source.RemoveRecord("a")

	if onA.Value() != "default" {
		t.Errorf("binding on removed record = %v", onA.Value())
	}
	if len(*changesB) != 0 {
		t.Error("binding on another record was notified")
	}
}

func TestBinding_MalformedPath(t *testing.T) {
	editor := newTestEditor(t, Config{})
	addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "Name1"})

	for _, path := range []string{"ds1", "ds1.id1", "ds1.id1.name.x", ""} {
		b := editor.Bind(path, "default")
		if b.Value() != "default" || b.State() != BindingUnresolved {
			t.Errorf("Bind(%q): Value=%v State=%v", path, b.Value(), b.State())
		}
		if _, ok := b.Address(); ok {
			t.Errorf("Bind(%q) reports a valid address", path)
		}
	}
	if editor.Hub().Subscribers(PathTopic("ds1")) != 0 {
		t.Error("malformed paths took subscriptions")
	}
}

func TestBinding_NonExistentPathsShowDefault(t *testing.T) {
	editor := newTestEditor(t, Config{})
	addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "Name1"})

	defaults := []interface{}{"d", 0, false, nil, map[string]interface{}{"k": "v"}}
	for _, path := range []string{"ds2.id1.name", "ds1.id2.name", "ds1.id1.missing"} {
		for _, d := range defaults {
			b := editor.Bind(path, d)
			if !valuesEqual(b.Value(), d) {
				t.Errorf("Bind(%q, %v).Value() = %v", path, d, b.Value())
			}
			b.Dispose()
		}
	}
}

func TestBinding_CallbackOrder(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "a"})

	first := editor.Bind("ds1.id1.name", nil)
	second := editor.Bind("ds1.id1.name", nil)

	var order []string
	first.OnChange(func(BindingChange) { order = append(order, "A") })
	second.OnChange(func(BindingChange) { order = append(order, "B") })
	first.OnChange(func(BindingChange) { order = append(order, "A2") })

	source.GetRecord("id1").Set(map[string]interface{}{"name": "b"})

	if len(order) != 3 || order[0] != "A" || order[1] != "A2" || order[2] != "B" {
		t.Errorf("order = %v, want [A A2 B]", order)
	}
}

func TestBinding_DisposeIsIdempotent(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "a"})

	b := editor.Bind("ds1.id1.name", nil)
	changes := recordChanges(b)
	if editor.Bindings() != 1 {
		t.Fatalf("Bindings = %d", editor.Bindings())
	}

	b.Dispose()
	b.Dispose()

	if b.State() != BindingDetached {
		t.Errorf("State = %v, want detached", b.State())
	}
	if editor.Bindings() != 0 {
		t.Errorf("Bindings = %d after dispose", editor.Bindings())
	}
	for _, key := range []string{"ds1", "ds1.id1", "ds1.id1.name"} {
		if n := editor.Hub().Subscribers(PathTopic(key)); n != 0 {
			t.Errorf("%d subscribers left on %s", n, key)
		}
	}

	source.GetRecord("id1").Set(map[string]interface{}{"name": "b"})
	b.SetPath("ds1.id1.other")
	b.SetDefault("x")
	b.Refresh()

	if len(*changes) != 0 {
		t.Errorf("disposed binding reported %v", *changes)
	}
	if b.Value() != "a" {
		t.Errorf("disposed binding value changed to %v", b.Value())
	}
}

func TestBinding_DisposeFromCallback(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "a"})

	first := editor.Bind("ds1.id1.name", nil)
	second := editor.Bind("ds1.id1.name", nil)

	secondCalls := 0
	first.OnChange(func(BindingChange) { second.Dispose() })
	second.OnChange(func(BindingChange) { secondCalls++ })

	source.GetRecord("id1").Set(map[string]interface{}{"name": "b"})

	if secondCalls != 0 {
		t.Errorf("binding disposed mid-publish was still called %d times", secondCalls)
	}
}

func TestBinding_OnChangeCancel(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "a"})

	b := editor.Bind("ds1.id1.name", nil)
	calls := 0
	sub := b.OnChange(func(BindingChange) { calls++ })
	sub.Cancel()

	source.GetRecord("id1").Set(map[string]interface{}{"name": "b"})
	if calls != 0 {
		t.Errorf("cancelled callback called %d times", calls)
	}
	if b.Value() != "b" {
		t.Error("binding stopped tracking after callback cancel")
	}
}

func TestBinding_SetDefault(t *testing.T) {
	editor := newTestEditor(t, Config{})

	b := editor.Bind("ds1.id1.name", "old")
	changes := recordChanges(b)

	b.SetDefault("new")
	if b.Value() != "new" || b.Default() != "new" {
		t.Errorf("Value=%v Default=%v", b.Value(), b.Default())
	}
	if len(*changes) != 1 {
		t.Errorf("changes = %v", *changes)
	}

	addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "live"})
	b.SetDefault("ignored")
	if b.Value() != "live" || len(*changes) != 2 {
		t.Errorf("resolved binding: Value=%v changes=%v", b.Value(), *changes)
	}
}

func TestBinding_ChangeCarriesOldAndState(t *testing.T) {
	editor := newTestEditor(t, Config{})
	source := addSource(t, editor, "ds1", RecordProps{"id": "id1", "price": 10})

	b := editor.Bind("ds1.id1.price", 0)
	var got BindingChange
	b.OnChange(func(change BindingChange) { got = change })

	source.GetRecord("id1").Set(map[string]interface{}{"price": 12})

	if got.Old != 10 || got.New != 12 || got.State != BindingResolved || got.Path != "ds1.id1.price" {
		t.Errorf("change = %+v", got)
	}
}

func TestBinding_CallbackPanicIsIsolated(t *testing.T) {
	var reported []error
	editor := newTestEditor(t, Config{ErrorHandler: func(err error, path string) {
		reported = append(reported, err)
	}})
	source := addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "a"})

	b := editor.Bind("ds1.id1.name", nil)
	other := editor.Bind("ds1.id1.name", nil)
	b.OnChange(func(BindingChange) { panic("render failed") })
	reached := false
	other.OnChange(func(BindingChange) { reached = true })

	source.GetRecord("id1").Set(map[string]interface{}{"name": "b"})

	if !reached {
		t.Error("panic stopped delivery to the next binding")
	}
	if len(reported) != 1 || ErrorCode(reported[0]) != ErrCodeHandlerPanic {
		t.Errorf("reported = %v", reported)
	}
}

func TestBinding_Export(t *testing.T) {
	editor := newTestEditor(t, Config{})
	addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "Name1"})

	b := editor.NewBinding(BindingProps{Path: "ds1.id1.name", Default: "d"})

	if b.Export(false) != "Name1" {
		t.Errorf("Export(false) = %v", b.Export(false))
	}

	kept, ok := b.Export(true).(map[string]interface{})
	if !ok {
		t.Fatalf("Export(true) = %T", b.Export(true))
	}
	if kept["type"] != BindingType || kept["path"] != "ds1.id1.name" || kept["defaultValue"] != "d" {
		t.Errorf("Export(true) = %v", kept)
	}

	restored := editor.NewBinding(b.Props())
	if restored.Value() != "Name1" {
		t.Errorf("restored binding Value = %v", restored.Value())
	}
}

func TestBinding_ValueIsACopy(t *testing.T) {
	editor := newTestEditor(t, Config{})
	addSource(t, editor, "ds1", RecordProps{"id": "id1", "tags": []interface{}{"a"}})

	b := editor.Bind("ds1.id1.tags", nil)
	b.Value().([]interface{})[0] = "mutated"

	if b.Value().([]interface{})[0] != "a" {
		t.Error("binding value shares memory with the caller")
	}
}

func TestBinding_ClosedEditor(t *testing.T) {
	editor := New(Config{})
	addSource(t, editor, "ds1", RecordProps{"id": "id1", "name": "a"})

	live := editor.Bind("ds1.id1.name", "d")
	calls := 0
	live.OnChange(func(BindingChange) { calls++ })

	if err := editor.Close(); err != nil {
		t.Fatal(err)
	}
	if live.State() != BindingDetached || calls != 0 {
		t.Errorf("Close: State=%v calls=%d", live.State(), calls)
	}

	late := editor.Bind("ds1.id1.name", "d")
	if late.State() != BindingDetached || late.Value() != "d" {
		t.Errorf("binding on closed editor: State=%v Value=%v", late.State(), late.Value())
	}
	if err := editor.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestBindingState_String(t *testing.T) {
	if BindingUnresolved.String() != "unresolved" || BindingResolved.String() != "resolved" ||
		BindingDetached.String() != "detached" || BindingState(42).String() != "unknown" {
		t.Error("BindingState.String mismatch")
	}
}
