package session_test

import (
	"testing"

	"github.com/artpar/waterspout/domain/session"
)

func TestValues_GetMissingIsNil(t *testing.T) {
	v := session.New()

	if got := v.Get("nope"); got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}
	if _, ok := v.Lookup("nope"); ok {
		t.Error("Lookup(missing) ok = true")
	}
	if v.Has("nope") {
		t.Error("Has(missing) = true")
	}
}

func TestValues_SetGetDelete(t *testing.T) {
	v := session.New()
	v.Set("name", "whtsky")
	v.Set("id", 2)

	if v.GetString("name") != "whtsky" {
		t.Errorf("GetString(name) = %q", v.GetString("name"))
	}
	if n, ok := v.GetInt("id"); !ok || n != 2 {
		t.Errorf("GetInt(id) = %d, %v; want 2, true", n, ok)
	}
	if v.Len() != 2 {
		t.Errorf("Len = %d, want 2", v.Len())
	}

	v.Delete("name")
	if v.Has("name") {
		t.Error("name still present after Delete")
	}
	v.Delete("name") // no-op
}

func TestValues_EncodeDecodeRoundTrip(t *testing.T) {
	v := session.New()
	v.Set("id", 7)
	v.Set("admin", true)
	v.Set("tags", []string{"a", "b"})

	data, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	got, err := session.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	if n, ok := got.GetInt("id"); !ok || n != 7 {
		t.Errorf("GetInt(id) = %d, %v; want 7, true", n, ok)
	}
	if !got.GetBool("admin") {
		t.Error("GetBool(admin) = false")
	}
	if keys := got.Keys(); len(keys) != 3 || keys[0] != "admin" {
		t.Errorf("Keys = %v, want sorted [admin id tags]", keys)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := session.Decode([]byte("not json")); err == nil {
		t.Error("Decode(garbage) error = nil")
	}

	v, err := session.Decode([]byte("null"))
	if err != nil {
		t.Fatalf("Decode(null) error: %v", err)
	}
	if v == nil || v.Len() != 0 {
		t.Errorf("Decode(null) = %v, want empty mapping", v)
	}
}

func TestGetInt_NonIntegral(t *testing.T) {
	v := session.Values{"f": 1.5, "s": "3"}
	if _, ok := v.GetInt("f"); ok {
		t.Error("GetInt(1.5) ok = true")
	}
	if _, ok := v.GetInt("s"); ok {
		t.Error("GetInt(\"3\") ok = true")
	}
}
