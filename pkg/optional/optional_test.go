package optional

import (
	"encoding/json"
	"testing"
)

type patchBody struct {
	Name  Field[string] `json:"name"`
	Order Field[int]    `json:"order"`
}

func TestAbsentFieldStaysAbsent(t *testing.T) {
	var body patchBody
	if err := json.Unmarshal([]byte(`{}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Name.Present() || body.Order.Present() {
		t.Fatalf("expected absent fields, got name=%v order=%v", body.Name.Present(), body.Order.Present())
	}
}

func TestNullFieldIsPresentAndNull(t *testing.T) {
	var body patchBody
	if err := json.Unmarshal([]byte(`{"order": null}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Order.Present() {
		t.Fatal("expected order to be present")
	}
	if !body.Order.IsNull() {
		t.Fatal("expected order to be null")
	}
	if _, ok := body.Order.Value(); ok {
		t.Fatal("null field must not report a value")
	}
}

func TestValueField(t *testing.T) {
	var body patchBody
	if err := json.Unmarshal([]byte(`{"name": "Dune", "order": 2}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	name, ok := body.Name.Value()
	if !ok || name != "Dune" {
		t.Fatalf("name = %q, ok = %v", name, ok)
	}
	order, ok := body.Order.Value()
	if !ok || order != 2 {
		t.Fatalf("order = %d, ok = %v", order, ok)
	}
	if body.Name.IsNull() {
		t.Fatal("value field must not be null")
	}
}

func TestConstructors(t *testing.T) {
	f := Of(7)
	if v, ok := f.Value(); !ok || v != 7 {
		t.Fatalf("Of(7).Value() = %d, %v", v, ok)
	}
	n := Null[int]()
	if !n.Present() || !n.IsNull() {
		t.Fatal("Null must be present and null")
	}
	var zero Field[int]
	if zero.Present() {
		t.Fatal("zero Field must be absent")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := json.Marshal(struct {
		A Field[string] `json:"a"`
		B Field[string] `json:"b"`
	}{A: Of("x"), B: Null[string]()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"a":"x","b":null}` {
		t.Fatalf("unexpected payload: %s", data)
	}
}
