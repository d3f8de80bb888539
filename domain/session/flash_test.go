package session_test

import (
	"reflect"
	"testing"

	"github.com/artpar/waterspout/domain/session"
)

func TestFlash_DrainAll(t *testing.T) {
	v := session.New()
	session.Flash(v, "saved", "")

	got := session.Messages(session.TakeFlashes(v))
	if !reflect.DeepEqual(got, []string{"saved"}) {
		t.Errorf("first take = %v, want [saved]", got)
	}

	got = session.Messages(session.TakeFlashes(v))
	if len(got) != 0 {
		t.Errorf("second take = %v, want []", got)
	}
	if v.Has(session.FlashKey) {
		t.Error("flash key left behind after drain")
	}
}

func TestFlash_DefaultCategory(t *testing.T) {
	v := session.New()
	session.Flash(v, "hi", "")

	msgs := session.TakeFlashes(v)
	if len(msgs) != 1 || msgs[0].Category != session.DefaultCategory {
		t.Errorf("messages = %+v, want category %q", msgs, session.DefaultCategory)
	}
}

func TestFlash_FilterRetainsOthers(t *testing.T) {
	v := session.New()
	session.Flash(v, "a", "x")
	session.Flash(v, "b", "y")

	got := session.Messages(session.TakeFlashes(v, "y"))
	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("filtered take = %v, want [b]", got)
	}

	// Same filter again sees nothing
	if again := session.TakeFlashes(v, "y"); len(again) != 0 {
		t.Errorf("repeat filtered take = %+v, want none", again)
	}

	got = session.Messages(session.TakeFlashes(v))
	if !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("unfiltered take = %v, want [a]", got)
	}
}

func TestFlash_FilterPreservesOrder(t *testing.T) {
	v := session.New()
	session.Flash(v, "1", "info")
	session.Flash(v, "2", "error")
	session.Flash(v, "3", "info")
	session.Flash(v, "4", "warning")

	got := session.TakeFlashes(v, "info", "warning")
	want := []session.FlashMessage{
		{Category: "info", Message: "1"},
		{Category: "info", Message: "3"},
		{Category: "warning", Message: "4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("take = %+v, want %+v", got, want)
	}

	rest := session.Flashes(v)
	if len(rest) != 1 || rest[0].Message != "2" {
		t.Errorf("retained = %+v, want [error 2]", rest)
	}
}

func TestFlash_SurvivesCookieRoundTrip(t *testing.T) {
	v := session.New()
	session.Flash(v, "a", "x")
	session.Flash(v, "b", "y")

	data, err := v.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if string(data) != `{"_flashes":[["x","a"],["y","b"]]}` {
		t.Errorf("encoded = %s", data)
	}

	decoded, err := session.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	got := session.TakeFlashes(decoded, "x")
	if len(got) != 1 || got[0] != (session.FlashMessage{Category: "x", Message: "a"}) {
		t.Errorf("take after round trip = %+v", got)
	}

	// Appending to a decoded queue keeps earlier entries
	session.Flash(decoded, "c", "z")
	all := session.Messages(session.TakeFlashes(decoded))
	if !reflect.DeepEqual(all, []string{"b", "c"}) {
		t.Errorf("all = %v, want [b c]", all)
	}
}

func TestFlashes_CorruptQueueIsEmpty(t *testing.T) {
	v := session.Values{session.FlashKey: "garbage"}
	if got := session.Flashes(v); len(got) != 0 {
		t.Errorf("Flashes(corrupt) = %+v, want empty", got)
	}
}
